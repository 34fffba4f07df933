package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func (f *fakeRepo) Insert(_ context.Context, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepo) Recent(_ context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

func (f *fakeRepo) Close() error { return nil }

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func TestIngestorFlushesOnStop(t *testing.T) {
	repo := &fakeRepo{}
	ing := NewIngestor(zap.NewNop(), repo)
	ing.Start(context.Background())

	for i := 0; i < 5; i++ {
		ing.Record(&Entry{ID: "e", StreamID: "s", Status: StatusOK})
	}
	ing.Stop()

	assert.Eventually(t, func() bool { return repo.count() == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestIngestorFlushesFullBatches(t *testing.T) {
	repo := &fakeRepo{}
	ing := NewIngestor(zap.NewNop(), repo)
	ing.Start(context.Background())
	defer ing.Stop()

	// Reaching the batch size (20) forces an inline flush; the 21st entry
	// starts the next batch.
	for i := 0; i < 21; i++ {
		ing.Record(&Entry{ID: "e", StreamID: "s", Status: StatusError})
	}

	assert.Eventually(t, func() bool { return repo.count() >= 20 }, 2*time.Second, 10*time.Millisecond)
}
