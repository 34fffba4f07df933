package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/bahayonghang/LitReview/internal/history"
)

type repository struct {
	db *sqlx.DB
}

func (r *repository) Insert(ctx context.Context, entry *history.Entry) error {
	query := `
		INSERT INTO stream_history (
			id, stream_id, provider, kind, model, status, error,
			delta_count, output_bytes, ttfd_ms, duration_ms, created_at
		) VALUES (
			:id, :stream_id, :provider, :kind, :model, :status, :error,
			:delta_count, :output_bytes, :ttfd_ms, :duration_ms, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

func (r *repository) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entries []history.Entry
	query := `SELECT * FROM stream_history ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Close() error {
	return r.db.Close()
}
