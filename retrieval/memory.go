package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/shopquery/shopquery/core"
)

// InMemoryIndex is a process-local Index over embedded documents using
// cosine similarity. Suited to tests, demos and small catalogs; production
// deployments use the pgvector subpackage.
type InMemoryIndex struct {
	mu       sync.RWMutex
	docs     []embeddedDoc
	embedder Embedder
}

type embeddedDoc struct {
	doc    Document
	vector []float32
}

// NewInMemoryIndex constructs an empty index over the given embedder.
func NewInMemoryIndex(embedder Embedder) *InMemoryIndex {
	return &InMemoryIndex{embedder: embedder}
}

// Add embeds and stores documents.
func (i *InMemoryIndex) Add(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		vec, err := i.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		i.mu.Lock()
		i.docs = append(i.docs, embeddedDoc{doc: doc, vector: vec})
		i.mu.Unlock()
	}
	return nil
}

// Search implements Index.
func (i *InMemoryIndex) Search(ctx context.Context, q Query) ([]core.Passage, error) {
	queryVec, err := i.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	passages := make([]core.Passage, 0, len(i.docs))
	for _, ed := range i.docs {
		if q.Source != "" && ed.doc.Source != q.Source {
			continue
		}
		passages = append(passages, core.Passage{
			ID:       ed.doc.ID,
			Text:     ed.doc.Text,
			Score:    cosineSimilarity(queryVec, ed.vector),
			Source:   ed.doc.Source,
			Metadata: ed.doc.Metadata,
		})
	}
	sort.Slice(passages, func(a, b int) bool {
		if passages[a].Score != passages[b].Score {
			return passages[a].Score > passages[b].Score
		}
		return passages[a].ID < passages[b].ID
	})

	limit := q.Limit
	if limit <= 0 || limit > len(passages) {
		limit = len(passages)
	}
	return passages[:limit], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TokenEmbedder is a deterministic bag-of-words hashing embedder. It exists
// so the in-memory index works without any external embedding service; real
// deployments plug a provider-backed Embedder instead.
type TokenEmbedder struct {
	dims int
}

// NewTokenEmbedder creates an embedder producing vectors of dims dimensions.
func NewTokenEmbedder(dims int) *TokenEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &TokenEmbedder{dims: dims}
}

// Embed implements Embedder.
func (e *TokenEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:\"'()")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%e.dims]++
	}
	return vec, nil
}
