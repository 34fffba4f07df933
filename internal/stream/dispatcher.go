package stream

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/history"
	"github.com/bahayonghang/LitReview/internal/llm"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// testPrompt is the probe sent by connection tests. Kept word-for-word from
// the desktop app so providers short-circuit with a one-token reply.
const testPrompt = "Say 'OK' in one word."

// Dispatcher is the process-wide façade: it turns UI calls into session
// lifecycle and routes catalogue mutations through the store. It is the
// only owner of the live-session table.
type Dispatcher struct {
	logger   *zap.Logger
	store    *catalog.Store
	bus      *Bus
	ingestor history.Ingestor
	client   *http.Client

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// NewDispatcher wires the façade. ingestor may be nil to disable history.
func NewDispatcher(store *catalog.Store, bus *Bus, ingestor history.Ingestor, connectTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		store:    store,
		bus:      bus,
		ingestor: ingestor,
		client:   newStreamingClient(connectTimeout),
		sessions: make(map[string]context.CancelFunc),
	}
}

// newStreamingClient bounds the connect phase only. Generations can run for
// minutes, so there is deliberately no overall client timeout; readers stop
// streams through context cancellation.
func newStreamingClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: connectTimeout,
		},
	}
}

// Bus exposes the event bus for subscribers.
func (d *Dispatcher) Bus() *Bus {
	return d.bus
}

// StartStream validates the record, mints a stream id, registers the
// session, and spawns its driver. It returns before the first byte moves.
func (d *Dispatcher) StartStream(record catalog.ProviderRecord, prompts api.PromptPair) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	adapter, err := llm.ForKind(record.Kind)
	if err != nil {
		return "", err
	}

	streamID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.sessions[streamID] = cancel
	d.mu.Unlock()

	sess := newSession(streamID, record.Clone(), prompts, adapter, d.client, d.bus.Publish, d.logger)

	go func() {
		outcome := sess.run(ctx)
		d.finish(streamID, record, outcome)
		cancel()
	}()

	d.logger.Info("stream started",
		zap.String("stream_id", streamID),
		zap.String("type", string(record.Kind)),
		zap.String("model", record.Model))

	return streamID, nil
}

// CancelStream signals the session's cancellation handle. Idempotent;
// unknown ids are a no-op. The session publishes nothing after this.
func (d *Dispatcher) CancelStream(streamID string) {
	d.mu.Lock()
	cancel, ok := d.sessions[streamID]
	d.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	d.logger.Info("stream cancelled", zap.String("stream_id", streamID))
}

// finish removes the session from the table and records its outcome.
func (d *Dispatcher) finish(streamID string, record catalog.ProviderRecord, outcome Outcome) {
	d.mu.Lock()
	delete(d.sessions, streamID)
	d.mu.Unlock()

	switch outcome.Status {
	case statusError:
		d.logger.Warn("stream failed",
			zap.String("stream_id", streamID),
			zap.Error(outcome.Err),
			zap.Duration("duration", outcome.Duration))
	default:
		d.logger.Info("stream finished",
			zap.String("stream_id", streamID),
			zap.String("status", outcome.Status),
			zap.Int("deltas", outcome.DeltaCount),
			zap.Duration("duration", outcome.Duration))
	}

	if d.ingestor == nil {
		return
	}
	entry := &history.Entry{
		ID:          uuid.NewString(),
		StreamID:    streamID,
		Kind:        string(record.Kind),
		Model:       record.Model,
		Status:      outcome.Status,
		DeltaCount:  outcome.DeltaCount,
		OutputBytes: outcome.OutputBytes,
		DurationMS:  outcome.Duration.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	if outcome.GotDelta {
		entry.TTFDMS = sql.NullInt64{Int64: outcome.FirstDelta.Milliseconds(), Valid: true}
	}
	d.ingestor.Record(entry)
}

// ActiveSessions reports how many streams are currently live.
func (d *Dispatcher) ActiveSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// TestConnection probes the provider end to end with a trivial prompt. The
// probe runs on a private sink, never on the llm-stream bus. Success is the
// first delta or a clean terminal; the captured error otherwise.
func (d *Dispatcher) TestConnection(ctx context.Context, record catalog.ProviderRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	adapter, err := llm.ForKind(record.Kind)
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan api.StreamEvent, 16)
	publish := func(ev api.StreamEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	sess := newSession(uuid.NewString(), record.Clone(), api.PromptPair{User: testPrompt}, adapter, d.client, publish, d.logger)
	done := make(chan Outcome, 1)
	go func() {
		done <- sess.run(probeCtx)
	}()

	select {
	case ev := <-events:
		if ev.Error != "" {
			// The session returns right after publishing its failure; hand
			// back the typed error it captured.
			if outcome := <-done; outcome.Err != nil {
				return outcome.Err
			}
			return &api.UpstreamError{Message: ev.Error}
		}
		// A first delta or a clean terminal proves the path works; the
		// deferred cancel tears the probe down.
		return nil
	case outcome := <-done:
		if outcome.Err != nil {
			return outcome.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadConfig returns the catalogue, seeding the default on first run.
func (d *Dispatcher) LoadConfig() (catalog.AppConfig, error) {
	return d.store.Load()
}

// SaveConfig validates and persists the catalogue.
func (d *Dispatcher) SaveConfig(cfg catalog.AppConfig) error {
	return d.store.Save(cfg)
}

// SetDefaultProvider promotes the named provider to default.
func (d *Dispatcher) SetDefaultProvider(name string) error {
	return d.store.SetDefault(name)
}

// ActiveConfig resolves the default provider into a flattened record.
func (d *Dispatcher) ActiveConfig() (catalog.ActiveRecord, error) {
	cfg, err := d.store.Load()
	if err != nil {
		return catalog.ActiveRecord{}, err
	}
	return cfg.Active()
}

// ConfigPath returns the catalogue document's absolute path.
func (d *Dispatcher) ConfigPath() string {
	return d.store.Path()
}
