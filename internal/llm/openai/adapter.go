package openai

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

// Adapter speaks the OpenAI chat-completions protocol. It also covers
// DeepSeek, Moonshot, Ollama and any other endpoint that clones it.
type Adapter struct{}

func (Adapter) Kind() catalog.Kind { return catalog.KindOpenAI }

const temperature = 0.3

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

func (Adapter) BuildRequest(rec catalog.ProviderRecord, prompts api.PromptPair) (*http.Request, error) {
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(rec.BaseURL, "/"))

	var messages []message
	if prompts.System != "" {
		messages = append(messages, message{Role: "system", Content: prompts.System})
	}
	messages = append(messages, message{Role: "user", Content: prompts.User})

	body, err := json.Marshal(request{
		Model:       rec.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: temperature,
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
	// No auth header without a key; Ollama-style local endpoints reject none.
	if rec.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+rec.APIKey)
	}

	return req, nil
}

func (Adapter) NewParser() llm.FrameParser {
	return &parser{}
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
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

		if payload == "[DONE]" {
			p.done = true
			events = append(events, llm.Event{Done: true})
			break
		}

		var frame streamChunk
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return events, &api.ProtocolError{Detail: fmt.Sprintf("bad chat-completions frame: %v", err)}
		}

		for _, choice := range frame.Choices {
			if choice.Delta.Content != "" {
				events = append(events, llm.Event{Delta: choice.Delta.Content})
			}
			if choice.FinishReason != nil {
				p.done = true
				events = append(events, llm.Event{Done: true})
				break
			}
		}
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
	// Clean close without an explicit [DONE]; treat as end of generation.
	return true, nil
}
