package history

import (
	"database/sql"
	"time"
)

// Stream outcome statuses.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Entry is the metadata of one terminated stream session. Prompt and
// generated content are never stored, only shape and timing.
type Entry struct {
	ID          string        `db:"id" json:"id"`
	StreamID    string        `db:"stream_id" json:"stream_id"`
	Provider    string        `db:"provider" json:"provider"`
	Kind        string        `db:"kind" json:"kind"`
	Model       string        `db:"model" json:"model"`
	Status      string        `db:"status" json:"status"`
	Error       string        `db:"error" json:"error,omitempty"`
	DeltaCount  int           `db:"delta_count" json:"delta_count"`
	OutputBytes int           `db:"output_bytes" json:"output_bytes"`
	TTFDMS      sql.NullInt64 `db:"ttfd_ms" json:"ttfd_ms"`
	DurationMS  int64         `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}
