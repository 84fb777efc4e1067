// Package postgres provides the durable FeedbackStore backend on PostgreSQL
// via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopquery/shopquery/core"
)

// Schema is the DDL for the feedback table.
const Schema = `
CREATE TABLE IF NOT EXISTS feedback (
    id         TEXT PRIMARY KEY,
    trace_id   TEXT NOT NULL,
    sentiment  TEXT NOT NULL,
    comment    TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS feedback_trace_idx ON feedback (trace_id, created_at);
`

// Store is a FeedbackStore backed by PostgreSQL. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InitSchema creates the feedback table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init feedback schema: %w", err)
	}
	return nil
}

// Append stores a new record.
func (s *Store) Append(ctx context.Context, rec core.FeedbackRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (id, trace_id, sentiment, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.TraceID, string(rec.Sentiment), rec.Comment, rec.CreatedAt,
	)
	if err != nil {
		return core.NewError(core.KindPersistence, "insert feedback", err)
	}
	return nil
}

// ByTrace returns all records for a trace id in insertion order.
func (s *Store) ByTrace(ctx context.Context, traceID string) ([]core.FeedbackRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, trace_id, sentiment, comment, created_at
		 FROM feedback WHERE trace_id = $1 ORDER BY created_at, id`,
		traceID,
	)
	if err != nil {
		return nil, core.NewError(core.KindPersistence, "query feedback", err)
	}
	defer rows.Close()

	out := []core.FeedbackRecord{}
	for rows.Next() {
		var rec core.FeedbackRecord
		var sentiment string
		if err := rows.Scan(&rec.ID, &rec.TraceID, &sentiment, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, core.NewError(core.KindPersistence, "scan feedback", err)
		}
		rec.Sentiment = core.Sentiment(sentiment)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError(core.KindPersistence, "iterate feedback", err)
	}
	return out, nil
}
