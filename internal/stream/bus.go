package stream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/pkg/api"
)

// subscriberBuffer bounds each subscriber's queue. The UI drains far faster
// than the network produces, so a full buffer means a stuck consumer;
// events are dropped rather than stalling every session.
const subscriberBuffer = 256

// Bus is the single publish channel ("llm-stream") carrying normalized
// events. Sessions publish; subscribers filter by stream_id on receipt.
// Delivery is in publish order per subscriber, current subscribers only,
// nothing is persisted.
type Bus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   map[uint64]chan api.StreamEvent
	nextID uint64
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[uint64]chan api.StreamEvent),
	}
}

// Subscribe registers a consumer. The returned cancel function must be
// called to release the subscription; it closes the channel.
func (b *Bus) Subscribe() (<-chan api.StreamEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan api.StreamEvent, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish fans the event out to every current subscriber without blocking.
func (b *Bus) Publish(ev api.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub <- ev:
		default:
			b.logger.Warn("Subscriber buffer full, dropping event",
				zap.String("stream_id", ev.StreamID),
				zap.Bool("done", ev.Done))
		}
	}
}
