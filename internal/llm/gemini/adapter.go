package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/internal/llm/sse"
	"github.com/bahayonghang/LitReview/pkg/api"
)

func init() {
	llm.Register(Adapter{})
}

// Adapter speaks the Google generative-language protocol. alt=sse is
// requested, but the parser also understands the plain JSON-array framing
// some deployments fall back to.
type Adapter struct{}

func (Adapter) Kind() catalog.Kind { return catalog.KindGemini }

const temperature = 0.3

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type request struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

func (Adapter) BuildRequest(rec catalog.ProviderRecord, prompts api.PromptPair) (*http.Request, error) {
	// The API key travels in the query string, not a header.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		strings.TrimRight(rec.BaseURL, "/"),
		rec.Model,
		url.QueryEscape(rec.APIKey),
	)

	body := request{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompts.User}}}},
		GenerationConfig: generationConfig{Temperature: temperature},
	}
	if prompts.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: prompts.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	return req, nil
}

func (Adapter) NewParser() llm.FrameParser {
	return &parser{}
}

type streamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type framing int

const (
	framingUnknown framing = iota
	framingSSE
	framingJSON
)

type parser struct {
	mode  framing
	lines sse.LineBuffer
	raw   []byte
	done  bool
}

func (p *parser) Feed(chunk []byte) ([]llm.Event, error) {
	if p.mode == framingUnknown {
		p.raw = append(p.raw, chunk...)
		probe := bytes.TrimLeft(p.raw, " \t\r\n")
		if len(probe) == 0 {
			return nil, nil
		}
		// SSE bodies open with "data:" (or a ":" keepalive); the JSON-array
		// framing opens with the array bracket or a bare object.
		if probe[0] == '[' || probe[0] == '{' {
			p.mode = framingJSON
		} else {
			p.mode = framingSSE
		}
		chunk = p.raw
		p.raw = nil
	}

	if p.mode == framingJSON {
		return p.feedJSON(chunk)
	}
	return p.feedSSE(chunk)
}

func (p *parser) feedSSE(chunk []byte) ([]llm.Event, error) {
	var events []llm.Event
	for _, line := range p.lines.Feed(chunk) {
		if p.done {
			break
		}

		payload, ok := sse.Data(line)
		if !ok {
			continue
		}

		var frame streamResponse
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			return events, &api.ProtocolError{Detail: fmt.Sprintf("bad generate-content frame: %v", err)}
		}

		evs, terminal := normalize(frame)
		events = append(events, evs...)
		if terminal {
			p.done = true
			break
		}
	}
	return events, nil
}

// feedJSON handles the fallback framing: a stream of JSON objects wrapped
// in one big array ("[{...},{...}]") or simply concatenated. Objects are
// decoded as soon as they are complete in the buffer.
func (p *parser) feedJSON(chunk []byte) ([]llm.Event, error) {
	p.raw = append(p.raw, chunk...)

	var events []llm.Event
	for !p.done {
		p.raw = bytes.TrimLeft(p.raw, " \t\r\n,[]")
		if len(p.raw) == 0 {
			break
		}

		dec := json.NewDecoder(bytes.NewReader(p.raw))
		var frame streamResponse
		if err := dec.Decode(&frame); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				// Object still arriving; keep the bytes for the next chunk.
				break
			}
			return events, &api.ProtocolError{Detail: fmt.Sprintf("bad generate-content object: %v", err)}
		}
		p.raw = p.raw[dec.InputOffset():]

		evs, terminal := normalize(frame)
		events = append(events, evs...)
		if terminal {
			p.done = true
		}
	}
	return events, nil
}

func normalize(frame streamResponse) ([]llm.Event, bool) {
	var events []llm.Event
	terminal := false
	for _, candidate := range frame.Candidates {
		for _, pt := range candidate.Content.Parts {
			if pt.Text != "" {
				events = append(events, llm.Event{Delta: pt.Text})
			}
		}
		if candidate.FinishReason != "" {
			terminal = true
		}
	}
	if terminal {
		events = append(events, llm.Event{Done: true})
	}
	return events, terminal
}

func (p *parser) Finish() (bool, error) {
	if p.done {
		return false, nil
	}
	var residual string
	if p.mode == framingJSON {
		residual = string(bytes.TrimLeft(p.raw, " \t\r\n,[]"))
	} else {
		residual = p.lines.Residual()
	}
	if residual != "" {
		return false, api.ErrUnexpectedEnd
	}
	// The body closing is Gemini's usual terminal marker.
	return true, nil
}
