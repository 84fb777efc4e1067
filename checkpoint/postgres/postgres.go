// Package postgres provides the durable CheckpointStore backend on
// PostgreSQL via pgx. Turns are stored one row each, keyed by trace id, with
// the conversation row carrying the committed turn count used for append
// conflict detection.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
)

// Schema is the DDL for the checkpoint tables. Apply it once at deploy time
// (see cmd/shopquery serve --init-schema).
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    turn_count INTEGER NOT NULL DEFAULT 0,
    memory     JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS turns (
    trace_id        TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    turn_index      INTEGER NOT NULL,
    payload         JSONB NOT NULL,
    status          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (conversation_id, turn_index)
);

CREATE INDEX IF NOT EXISTS turns_conversation_idx ON turns (conversation_id, turn_index);
`

// Store is a CheckpointStore backed by PostgreSQL. Safe for concurrent use;
// append serialization within a conversation rides on a row lock of the
// conversation record.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// Options configures the store.
type Options struct {
	Logger logging.Logger
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{pool: pool, logger: opts.Logger}
}

// InitSchema creates the checkpoint tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init checkpoint schema: %w", err)
	}
	return nil
}

// Load returns the conversation with all committed turns or core.ErrNotFound.
func (s *Store) Load(ctx context.Context, conversationID string) (*core.Conversation, error) {
	conv := &core.Conversation{ID: conversationID, Memory: map[string]any{}}
	var memory []byte
	err := s.pool.QueryRow(ctx,
		`SELECT memory, created_at, updated_at FROM conversations WHERE id = $1`,
		conversationID,
	).Scan(&memory, &conv.Created, &conv.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, persistence("load conversation", err)
	}
	if len(memory) > 0 {
		if err := json.Unmarshal(memory, &conv.Memory); err != nil {
			return nil, persistence("decode conversation memory", err)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM turns WHERE conversation_id = $1 ORDER BY turn_index`,
		conversationID,
	)
	if err != nil {
		return nil, persistence("load turns", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, persistence("scan turn", err)
		}
		var turn core.Turn
		if err := json.Unmarshal(payload, &turn); err != nil {
			return nil, persistence("decode turn", err)
		}
		conv.Turns = append(conv.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterate turns", err)
	}
	return conv, nil
}

// LoadOrCreate returns the conversation, inserting an empty record on first
// use.
func (s *Store) LoadOrCreate(ctx context.Context, conversationID string) (*core.Conversation, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
		conversationID,
	)
	if err != nil {
		return nil, persistence("create conversation", err)
	}
	return s.Load(ctx, conversationID)
}

// AppendTurn commits a new turn inside a transaction. The conversation row is
// locked, its turn_count compared against turn.Index, and both the turn row
// and the counter written together. A stale index returns core.ErrConflict.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn *core.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return persistence("encode turn", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistence("begin append", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (id) VALUES ($1)
		 ON CONFLICT (id) DO UPDATE SET updated_at = now()
		 RETURNING turn_count`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return persistence("lock conversation", err)
	}
	if turn.Index != count {
		return core.ErrConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO turns (trace_id, conversation_id, turn_index, payload, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		turn.TraceID, conversationID, turn.Index, payload, string(turn.Status),
	)
	if err != nil {
		return persistence("insert turn", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE conversations SET turn_count = turn_count + 1, updated_at = now() WHERE id = $1`,
		conversationID,
	)
	if err != nil {
		return persistence("bump turn count", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return persistence("commit append", err)
	}
	s.logger.Debug("checkpoint.appended", "conversation_id", conversationID, "trace_id", turn.TraceID, "index", turn.Index)
	return nil
}

// UpdateTurn overwrites the stored snapshot for turn.TraceID.
func (s *Store) UpdateTurn(ctx context.Context, turn *core.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return persistence("encode turn", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE turns SET payload = $2, status = $3, updated_at = now() WHERE trace_id = $1`,
		turn.TraceID, payload, string(turn.Status),
	)
	if err != nil {
		return persistence("update turn", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// TurnByTrace returns the turn with the given trace id or core.ErrNotFound.
func (s *Store) TurnByTrace(ctx context.Context, traceID string) (*core.Turn, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM turns WHERE trace_id = $1`, traceID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, persistence("load turn", err)
	}
	var turn core.Turn
	if err := json.Unmarshal(payload, &turn); err != nil {
		return nil, persistence("decode turn", err)
	}
	return &turn, nil
}

func persistence(op string, err error) error {
	return core.NewError(core.KindPersistence, op, err)
}
