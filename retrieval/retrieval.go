// Package retrieval provides the ranked-passage index consumed by the
// product-search and review-lookup tools. The embedding/ingestion pipeline
// that populates an index is external; this package only defines the search
// contract plus an in-memory implementation for tests and demos. A
// PostgreSQL/pgvector implementation lives in the pgvector subpackage.
package retrieval

import (
	"context"

	"github.com/shopquery/shopquery/core"
)

// Document source kinds used by the shipped tools.
const (
	SourceProduct = "product"
	SourceReview  = "review"
)

// Document is one indexable passage with its source kind and metadata.
type Document struct {
	ID       string
	Text     string
	Source   string // SourceProduct, SourceReview, ...
	Metadata map[string]string
}

// Query filters a search. Source empty means all sources.
type Query struct {
	Text   string
	Source string
	Limit  int
}

// Index is the vector-search capability: ranked passages with relevance
// scores and source metadata. Implementations must be safe for concurrent
// use.
type Index interface {
	Search(ctx context.Context, q Query) ([]core.Passage, error)
}

// Embedder converts text into a vector. The concrete embedding model is an
// external capability; adapters are supplied by the application.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
