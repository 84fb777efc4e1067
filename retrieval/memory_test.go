package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *InMemoryIndex {
	t.Helper()
	idx := NewInMemoryIndex(NewTokenEmbedder(128))
	err := idx.Add(context.Background(),
		Document{ID: "p1", Text: "waterproof hiking boots with ankle support", Source: SourceProduct},
		Document{ID: "p2", Text: "trail running shoes lightweight mesh", Source: SourceProduct},
		Document{ID: "r1", Text: "these hiking boots kept my feet dry all day", Source: SourceReview},
	)
	require.NoError(t, err)
	return idx
}

func TestInMemoryIndexSearchRanksByRelevance(t *testing.T) {
	idx := seedIndex(t)

	passages, err := idx.Search(context.Background(), Query{Text: "waterproof hiking boots", Limit: 2})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "p1", passages[0].ID)
	assert.Greater(t, passages[0].Score, passages[1].Score)
}

func TestInMemoryIndexSourceFilter(t *testing.T) {
	idx := seedIndex(t)

	passages, err := idx.Search(context.Background(), Query{Text: "hiking boots", Source: SourceReview, Limit: 10})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "r1", passages[0].ID)
	assert.Equal(t, SourceReview, passages[0].Source)
}

func TestInMemoryIndexLimitDefaults(t *testing.T) {
	idx := seedIndex(t)

	passages, err := idx.Search(context.Background(), Query{Text: "shoes"})
	require.NoError(t, err)
	assert.Len(t, passages, 3, "zero limit returns everything")
}

func TestTokenEmbedderDeterministic(t *testing.T) {
	e := NewTokenEmbedder(64)
	a, err := e.Embed(context.Background(), "Hiking Boots!")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hiking boots")
	require.NoError(t, err)
	assert.Equal(t, a, b, "case and punctuation insensitive")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}), "dimension mismatch")
	assert.Zero(t, cosineSimilarity(nil, nil))
}
