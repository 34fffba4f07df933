package gemini_test

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/internal/llm/gemini"
	"github.com/bahayonghang/LitReview/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record() catalog.ProviderRecord {
	return catalog.ProviderRecord{
		Kind:    catalog.KindGemini,
		BaseURL: "https://generativelanguage.googleapis.com",
		APIKey:  "gk",
		Model:   "gemini-1.5-flash",
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := gemini.Adapter{}.BuildRequest(record(), api.PromptPair{User: "hello"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(req.URL.Path, "/models/gemini-1.5-flash:streamGenerateContent"))
	assert.Equal(t, "gk", req.URL.Query().Get("key"))
	assert.Equal(t, "sse", req.URL.Query().Get("alt"))
	// The key travels in the query string, never a header.
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("x-goog-api-key"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	contents := body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, "hello", parts[0].(map[string]any)["text"])
	_, present := body["systemInstruction"]
	assert.False(t, present)
}

func TestBuildRequestWithSystemInstruction(t *testing.T) {
	req, err := gemini.Adapter{}.BuildRequest(record(), api.PromptPair{User: "hello", System: "Be brief."})
	require.NoError(t, err)

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	si := body["systemInstruction"].(map[string]any)
	parts := si["parts"].([]any)
	assert.Equal(t, "Be brief.", parts[0].(map[string]any)["text"])
}

const sseBody = "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"he\"}]}}]}\n\n" +
	"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"llo\"}]}}]}\n\n"

func feed(t *testing.T, p llm.FrameParser, body string, size int) []llm.Event {
	t.Helper()
	var events []llm.Event
	for i := 0; i < len(body); i += size {
		end := i + size
		if end > len(body) {
			end = len(body)
		}
		evs, err := p.Feed([]byte(body[i:end]))
		require.NoError(t, err)
		events = append(events, evs...)
	}
	return events
}

func TestParserSSE(t *testing.T) {
	p := gemini.Adapter{}.NewParser()
	events := feed(t, p, sseBody, len(sseBody))

	require.Len(t, events, 2)
	assert.Equal(t, "he", events[0].Delta)
	assert.Equal(t, "llo", events[1].Delta)

	// Body close is the terminal marker.
	done, err := p.Finish()
	assert.NoError(t, err)
	assert.True(t, done)
}

func TestParserSSESplitInvariant(t *testing.T) {
	whole := feed(t, gemini.Adapter{}.NewParser(), sseBody, len(sseBody))
	for _, size := range []int{1, 2, 5, 13} {
		assert.Equal(t, whole, feed(t, gemini.Adapter{}.NewParser(), sseBody, size), "chunk size %d", size)
	}
}

func TestParserFinishReasonIsTerminal(t *testing.T) {
	p := gemini.Adapter{}.NewParser()
	body := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"hi\"}]},\"finishReason\":\"STOP\"}]}\n\n"
	events := feed(t, p, body, len(body))

	require.Len(t, events, 2)
	assert.Equal(t, "hi", events[0].Delta)
	assert.True(t, events[1].Done)

	done, err := p.Finish()
	assert.NoError(t, err)
	assert.False(t, done)
}

// Some deployments ignore alt=sse and reply with one JSON array streamed
// object by object.
func TestParserJSONArrayFraming(t *testing.T) {
	body := "[{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"he\"}]}}]},\n" +
		"{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"llo\"}]}}]}]\n"

	for _, size := range []int{len(body), 1, 4, 9} {
		p := gemini.Adapter{}.NewParser()
		events := feed(t, p, body, size)

		require.Len(t, events, 2, "chunk size %d", size)
		assert.Equal(t, "he", events[0].Delta)
		assert.Equal(t, "llo", events[1].Delta)

		done, err := p.Finish()
		assert.NoError(t, err)
		assert.True(t, done)
	}
}

func TestParserMalformedSSEFrame(t *testing.T) {
	p := gemini.Adapter{}.NewParser()
	_, err := p.Feed([]byte("data: {nope}\n\n"))

	var protoErr *api.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestParserEmptyPartText(t *testing.T) {
	p := gemini.Adapter{}.NewParser()
	events, err := p.Feed([]byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"\"}]}}]}\n\n"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFinishTruncated(t *testing.T) {
	p := gemini.Adapter{}.NewParser()
	_, err := p.Feed([]byte("data: {\"candidates\":[{\"conte"))
	require.NoError(t, err)
	_, err = p.Finish()
	assert.ErrorIs(t, err, api.ErrUnexpectedEnd)

	p = gemini.Adapter{}.NewParser()
	_, err = p.Feed([]byte("[{\"candidates\":[{\"conte"))
	require.NoError(t, err)
	_, err = p.Finish()
	assert.ErrorIs(t, err, api.ErrUnexpectedEnd)
}
