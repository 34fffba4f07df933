package history

import "context"

// Repository is the persistence contract for stream history.
type Repository interface {
	// Insert stores one terminated stream entry.
	Insert(ctx context.Context, entry *Entry) error
	// Recent returns the last N entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	Close() error
}
