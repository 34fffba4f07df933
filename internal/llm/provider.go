package llm

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// Event is one normalized unit out of a frame parser: an incremental delta
// or the terminal marker.
type Event struct {
	Delta string
	Done  bool
}

// FrameParser is a resumable incremental parser over a provider's streaming
// body. Feed accepts appended bytes and returns the completed events; bytes
// of an incomplete frame are retained for the next call. A fully delimited
// but malformed frame fails with api.ProtocolError, an in-stream provider
// error with api.UpstreamError; events already completed in the same chunk
// are still returned alongside the error. After a terminal event has been
// produced the parser swallows everything else.
type FrameParser interface {
	Feed(chunk []byte) ([]Event, error)

	// Finish signals the end of the body. It reports whether the close
	// itself acts as the terminal marker, and fails with
	// api.ErrUnexpectedEnd if an unterminated partial frame remains.
	Finish() (done bool, err error)
}

// Adapter translates one provider family to and from its wire bytes.
// Adapters are stateless; per-stream state lives in the parser.
type Adapter interface {
	Kind() catalog.Kind

	// BuildRequest constructs the outbound streaming HTTP request for a
	// provider record and prompt pair.
	BuildRequest(rec catalog.ProviderRecord, prompts api.PromptPair) (*http.Request, error)

	// NewParser returns a fresh frame parser for one stream.
	NewParser() FrameParser
}

var (
	registryMu sync.RWMutex
	registry   = make(map[catalog.Kind]Adapter)
)

// Register installs an adapter for its kind. Called from adapter package
// init functions.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[a.Kind()] = a
}

// ForKind returns the adapter registered for the given provider kind.
func ForKind(kind catalog.Kind) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for provider type %q", catalog.ErrInvalidRecord, string(kind))
	}
	return a, nil
}
