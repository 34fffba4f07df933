package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ingestor persists stream entries asynchronously so session teardown never
// blocks on the database.
type Ingestor interface {
	Record(entry *Entry)
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      Repository
	entryChan chan *Entry
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, repo Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		entryChan: make(chan *Entry, 1024),
		batchSize: 20,
		flushTime: 5 * time.Second,
	}
}

func (i *ingestor) Record(entry *Entry) {
	select {
	case i.entryChan <- entry:
	default:
		i.logger.Warn("History buffer full, dropping entry", zap.String("stream_id", entry.StreamID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	close(i.entryChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]*Entry, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, entry := range batch {
			if err := i.repo.Insert(context.Background(), entry); err != nil {
				i.logger.Error("Failed to persist history entry", zap.String("stream_id", entry.StreamID), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-i.entryChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
