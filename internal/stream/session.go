package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// errorExcerptLimit bounds how much of an upstream error body is captured.
const errorExcerptLimit = 4096

// Outcome summarizes a terminated session for the dispatcher and history.
type Outcome struct {
	Status      string
	Err         error
	DeltaCount  int
	OutputBytes int
	FirstDelta  time.Duration
	GotDelta    bool
	Duration    time.Duration
}

// Session drives one streaming request from start to terminal. It owns the
// HTTP exchange and the frame parser; the dispatcher owns its cancel handle.
type Session struct {
	id      string
	record  catalog.ProviderRecord
	prompts api.PromptPair
	adapter llm.Adapter
	client  *http.Client
	publish func(api.StreamEvent)
	logger  *zap.Logger
}

func newSession(id string, record catalog.ProviderRecord, prompts api.PromptPair, adapter llm.Adapter, client *http.Client, publish func(api.StreamEvent), logger *zap.Logger) *Session {
	return &Session{
		id:      id,
		record:  record,
		prompts: prompts,
		adapter: adapter,
		client:  client,
		publish: publish,
		logger:  logger,
	}
}

// emit publishes unless the session has been cancelled. After a cancel the
// UI has already discarded the stream; staying quiet is the contract.
func (s *Session) emit(ctx context.Context, ev api.StreamEvent) {
	if ctx.Err() != nil {
		return
	}
	s.publish(ev)
}

// run executes the driver loop: build request, connect, pump the body
// through the frame parser, publish normalized events, and finish with
// exactly one terminal event unless cancelled.
func (s *Session) run(ctx context.Context) Outcome {
	start := time.Now()
	out := Outcome{Status: statusOK}

	fail := func(err error) Outcome {
		out.Status = statusError
		out.Err = err
		out.Duration = time.Since(start)
		if ctx.Err() != nil {
			out.Status = statusCancelled
			out.Err = nil
			return out
		}
		s.emit(ctx, api.Failed(s.id, err))
		return out
	}
	cancelled := func() Outcome {
		out.Status = statusCancelled
		out.Duration = time.Since(start)
		return out
	}
	finished := func() Outcome {
		out.Duration = time.Since(start)
		s.emit(ctx, api.Finished(s.id))
		return out
	}

	req, err := s.adapter.BuildRequest(s.record, s.prompts)
	if err != nil {
		return fail(err)
	}
	req = req.WithContext(ctx)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return fail(&api.NetworkError{Err: redactQuery(err)})
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorExcerptLimit))
		return fail(&api.ProviderError{Status: resp.StatusCode, Excerpt: string(excerpt)})
	}

	parser := s.adapter.NewParser()
	buf := make([]byte, 4096)

	for {
		if ctx.Err() != nil {
			return cancelled()
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, perr := parser.Feed(buf[:n])
			for _, ev := range events {
				if ev.Done {
					return finished()
				}
				out.DeltaCount++
				out.OutputBytes += len(ev.Delta)
				if !out.GotDelta {
					out.GotDelta = true
					out.FirstDelta = time.Since(start)
				}
				s.emit(ctx, api.Delta(s.id, ev.Delta))
			}
			if perr != nil {
				return fail(perr)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				done, ferr := parser.Finish()
				if ferr != nil {
					return fail(ferr)
				}
				if done {
					return finished()
				}
				out.Duration = time.Since(start)
				return out
			}
			if ctx.Err() != nil {
				return cancelled()
			}
			return fail(&api.NetworkError{Err: readErr})
		}
	}
}

const (
	statusOK        = "ok"
	statusError     = "error"
	statusCancelled = "cancelled"
)

// redactQuery strips the query string from transport errors. Gemini carries
// the API key as a query parameter, and surfaced errors must never hold it.
func redactQuery(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil && u.RawQuery != "" {
			u.RawQuery = ""
			ue.URL = u.String()
		}
	}
	return err
}
