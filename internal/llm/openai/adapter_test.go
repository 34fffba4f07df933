package openai_test

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/internal/llm/openai"
	"github.com/bahayonghang/LitReview/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record() catalog.ProviderRecord {
	return catalog.ProviderRecord{
		Kind:    catalog.KindOpenAI,
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "sk-x",
		Model:   "gpt-4o",
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := openai.Adapter{}.BuildRequest(record(), api.PromptPair{User: "Say OK", System: "You are terse."})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-x", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, true, body["stream"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "You are terse.", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestBuildRequestOmitsAuthForEmptyKey(t *testing.T) {
	rec := record()
	rec.APIKey = ""
	rec.BaseURL = "http://localhost:11434/v1/"

	req, err := openai.Adapter{}.BuildRequest(rec, api.PromptPair{User: "hi"})
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", req.URL.String())
}

const happyBody = `data: {"choices":[{"delta":{"content":"O"}}]}

data: {"choices":[{"delta":{"content":"K"}}]}

data: {"choices":[{"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`

func collect(t *testing.T, p llm.FrameParser, body string, chunkSize int) []llm.Event {
	t.Helper()
	var events []llm.Event
	for i := 0; i < len(body); i += chunkSize {
		end := i + chunkSize
		if end > len(body) {
			end = len(body)
		}
		evs, err := p.Feed([]byte(body[i:end]))
		require.NoError(t, err)
		events = append(events, evs...)
	}
	return events
}

func TestParserHappyPath(t *testing.T) {
	events := collect(t, openai.Adapter{}.NewParser(), happyBody, len(happyBody))

	require.Len(t, events, 3)
	assert.Equal(t, "O", events[0].Delta)
	assert.Equal(t, "K", events[1].Delta)
	assert.True(t, events[2].Done)
}

func TestParserIsSplitInvariant(t *testing.T) {
	whole := collect(t, openai.Adapter{}.NewParser(), happyBody, len(happyBody))

	for _, size := range []int{1, 2, 3, 7, 16} {
		chunked := collect(t, openai.Adapter{}.NewParser(), happyBody, size)
		assert.Equal(t, whole, chunked, "chunk size %d", size)
	}
}

func TestParserEmptyDeltaProducesNothing(t *testing.T) {
	p := openai.Adapter{}.NewParser()
	events, err := p.Feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParserDoneSentinelAfterFinishReason(t *testing.T) {
	// finish_reason already terminated the stream; the trailing [DONE]
	// must not yield a second terminal event.
	events := collect(t, openai.Adapter{}.NewParser(), happyBody, len(happyBody))

	terminal := 0
	for _, ev := range events {
		if ev.Done {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestParserMalformedFrame(t *testing.T) {
	p := openai.Adapter{}.NewParser()
	_, err := p.Feed([]byte("data: {not json}\n\n"))

	var protoErr *api.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestFinish(t *testing.T) {
	// Clean close without [DONE] counts as end of generation.
	p := openai.Adapter{}.NewParser()
	_, err := p.Feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
	require.NoError(t, err)
	done, err := p.Finish()
	assert.NoError(t, err)
	assert.True(t, done)

	// Truncated frame at close is an unexpected end.
	p = openai.Adapter{}.NewParser()
	_, err = p.Feed([]byte("data: {\"choices\":[{\"del"))
	require.NoError(t, err)
	_, err = p.Finish()
	assert.ErrorIs(t, err, api.ErrUnexpectedEnd)

	// After a terminal marker, trailing garbage is discarded.
	p = openai.Adapter{}.NewParser()
	_, err = p.Feed([]byte(happyBody + "data: {trailing"))
	require.NoError(t, err)
	done, err = p.Finish()
	assert.NoError(t, err)
	assert.False(t, done)
}
