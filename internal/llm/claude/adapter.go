package claude

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/internal/llm/sse"
	"github.com/bahayonghang/LitReview/pkg/api"
)

func init() {
	llm.Register(Adapter{})
}

// Adapter speaks the Anthropic messages protocol.
type Adapter struct{}

func (Adapter) Kind() catalog.Kind { return catalog.KindClaude }

// maxTokens is required by the messages API; 4096 is a generous ceiling for
// interactive generations.
const maxTokens = 4096

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream"`
}

func (Adapter) BuildRequest(rec catalog.ProviderRecord, prompts api.PromptPair) (*http.Request, error) {
	url := fmt.Sprintf("%s/v1/messages", strings.TrimRight(rec.BaseURL, "/"))

	body, err := json.Marshal(request{
		Model:     rec.Model,
		MaxTokens: maxTokens,
		// The system prompt is a top-level field here, not a message.
		System:   prompts.System,
		Messages: []message{{Role: "user", Content: prompts.User}},
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", rec.APIKey)
	req.Header.Set("anthropic-version", rec.APIVersion)

	return req, nil
}

func (Adapter) NewParser() llm.FrameParser {
	return &parser{}
}

// streamEvent covers the event payloads we care about; the event type is
// repeated inside the data payload, so the "event:" lines can be skipped.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type parser struct {
	lines sse.LineBuffer
	done  bool
}

func (p *parser) Feed(chunk []byte) ([]llm.Event, error) {
	var events []llm.Event
	for _, line := range p.lines.Feed(chunk) {
		if p.done {
			break
		}

		payload, ok := sse.Data(line)
		if !ok {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return events, &api.ProtocolError{Detail: fmt.Sprintf("bad messages frame: %v", err)}
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				events = append(events, llm.Event{Delta: event.Delta.Text})
			}
		case "message_stop":
			p.done = true
			events = append(events, llm.Event{Done: true})
		case "error":
			p.done = true
			return events, &api.UpstreamError{Message: event.Error.Message}
		}
		// message_start, ping, content_block_start etc. carry nothing we need.
	}
	return events, nil
}

func (p *parser) Finish() (bool, error) {
	if p.done {
		return false, nil
	}
	if p.lines.Residual() != "" {
		return false, api.ErrUnexpectedEnd
	}
	return true, nil
}
