// Package pgvector implements retrieval.Index on PostgreSQL with the
// pgvector extension. Documents are stored with their embedding; search runs
// a cosine-distance ANN query and returns ranked passages.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/retrieval"
)

// Schema is the DDL required by this index. Applied via InitSchema or the
// application's migration step.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS passages (
    id        TEXT PRIMARY KEY,
    source    TEXT NOT NULL,
    content   TEXT NOT NULL,
    metadata  JSONB NOT NULL DEFAULT '{}',
    embedding VECTOR(768) NOT NULL
);

CREATE INDEX IF NOT EXISTS passages_embedding_idx
    ON passages USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS passages_source_idx ON passages (source);
`

// Index is a pgvector-backed retrieval.Index. Safe for concurrent use; all
// synchronization is delegated to the connection pool.
type Index struct {
	pool     *pgxpool.Pool
	embedder retrieval.Embedder
}

// New creates an index over an existing pool and embedder.
func New(pool *pgxpool.Pool, embedder retrieval.Embedder) *Index {
	return &Index{pool: pool, embedder: embedder}
}

// InitSchema creates the passages table and indexes if they do not exist.
func (i *Index) InitSchema(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init passages schema: %w", err)
	}
	return nil
}

// Add embeds and upserts documents.
func (i *Index) Add(ctx context.Context, docs ...retrieval.Document) error {
	for _, doc := range docs {
		vec, err := i.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", doc.ID, err)
		}
		_, err = i.pool.Exec(ctx, `
			INSERT INTO passages (id, source, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET source = EXCLUDED.source,
			    content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding`,
			doc.ID, doc.Source, doc.Text, meta, pgv.NewVector(vec))
		if err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Search implements retrieval.Index. Scores are 1 - cosine distance so
// higher is better, matching the in-memory index.
func (i *Index) Search(ctx context.Context, q retrieval.Query) ([]core.Passage, error) {
	vec, err := i.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, source, content, metadata, 1 - (embedding <=> $1) AS score
		FROM passages`
	args := []any{pgv.NewVector(vec)}
	if q.Source != "" {
		query += ` WHERE source = $2`
		args = append(args, q.Source)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, limit)

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	defer rows.Close()

	var passages []core.Passage
	for rows.Next() {
		var p core.Passage
		var meta []byte
		if err := rows.Scan(&p.ID, &p.Source, &p.Text, &meta, &p.Score); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata %s: %w", p.ID, err)
			}
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return passages, nil
}
