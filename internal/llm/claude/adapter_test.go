package claude_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/internal/llm/claude"
	"github.com/bahayonghang/LitReview/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record() catalog.ProviderRecord {
	return catalog.ProviderRecord{
		Kind:       catalog.KindClaude,
		BaseURL:    "https://api.anthropic.com",
		APIKey:     "sk-ant-x",
		Model:      "claude-sonnet-4-20250514",
		APIVersion: "2023-06-01",
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := claude.Adapter{}.BuildRequest(record(), api.PromptPair{User: "hi", System: "You are terse."})
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.URL.String())
	assert.Equal(t, "sk-ant-x", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
	assert.Equal(t, float64(4096), body["max_tokens"])
	assert.Equal(t, true, body["stream"])
	// System prompt is a top-level field, never a messages entry.
	assert.Equal(t, "You are terse.", body["system"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "hi", messages[0].(map[string]any)["content"])
}

func TestBuildRequestWithoutSystem(t *testing.T) {
	req, err := claude.Adapter{}.BuildRequest(record(), api.PromptPair{User: "hi"})
	require.NoError(t, err)

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	_, present := body["system"]
	assert.False(t, present)
}

const happyBody = "event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n\n"

func TestParserHappyPath(t *testing.T) {
	p := claude.Adapter{}.NewParser()
	events, err := p.Feed([]byte(happyBody))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "Hi", events[0].Delta)
	assert.True(t, events[1].Done)
}

func TestParserIsSplitInvariant(t *testing.T) {
	feed := func(size int) []llm.Event {
		p := claude.Adapter{}.NewParser()
		var events []llm.Event
		for i := 0; i < len(happyBody); i += size {
			end := i + size
			if end > len(happyBody) {
				end = len(happyBody)
			}
			evs, err := p.Feed([]byte(happyBody[i:end]))
			require.NoError(t, err)
			events = append(events, evs...)
		}
		return events
	}

	whole := feed(len(happyBody))
	for _, size := range []int{1, 3, 5, 11} {
		assert.Equal(t, whole, feed(size), "chunk size %d", size)
	}
}

func TestParserIgnoresOtherEvents(t *testing.T) {
	p := claude.Adapter{}.NewParser()
	body := "event: message_start\n" +
		"data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":7}}}\n\n" +
		"event: ping\n" +
		"data: {\"type\":\"ping\"}\n\n"
	events, err := p.Feed([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParserEmptyTextDelta(t *testing.T) {
	p := claude.Adapter{}.NewParser()
	events, err := p.Feed([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"\"}}\n\n"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParserErrorEvent(t *testing.T) {
	p := claude.Adapter{}.NewParser()
	_, err := p.Feed([]byte("event: error\ndata: {\"type\":\"error\",\"error\":{\"message\":\"overloaded\"}}\n\n"))

	var upstream *api.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "overloaded", upstream.Message)
}

func TestFinish(t *testing.T) {
	p := claude.Adapter{}.NewParser()
	_, err := p.Feed([]byte(happyBody))
	require.NoError(t, err)
	done, err := p.Finish()
	assert.NoError(t, err)
	assert.False(t, done)

	p = claude.Adapter{}.NewParser()
	_, err = p.Feed([]byte("data: {\"type\":\"content_block"))
	require.NoError(t, err)
	_, err = p.Finish()
	assert.ErrorIs(t, err, api.ErrUnexpectedEnd)
}
