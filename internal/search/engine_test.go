package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaisonhq/liaison/internal/storage/sqlite"
	"github.com/liaisonhq/liaison/pkg/types"
)

// stubEmbedder returns a fixed vector per known text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no stub vector for %q", text)
	}
	return vec, nil
}

func (s *stubEmbedder) GetModel() string { return "stub-embedding" }

func newSearchFixture(t *testing.T) (*sqlite.Store, *Engine, *stubEmbedder) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	engine := NewEngine(store.Memories(), embedder, nil)
	return store, engine, embedder
}

func seedMemory(t *testing.T, store *sqlite.Store, id, content string, embedding []float64) {
	t.Helper()
	err := store.Memories().Create(context.Background(), &types.Memory{
		ID:         id,
		PropertyID: "prop-1",
		Content:    content,
		Embedding:  embedding,
	})
	require.NoError(t, err)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["roof repair"] = []float32{1, 0, 0}
	seedMemory(t, store, "m-close", "roof leak reported last month", []float64{0.95, 0.1, 0})
	seedMemory(t, store, "m-mid", "gutter cleaning scheduled", []float64{0.7, 0.7, 0})
	seedMemory(t, store, "m-far", "tenant prefers email", []float64{0, 1, 0})

	results, err := engine.Search(ctx, Request{
		Query: "roof repair",
		Scope: types.Scope{PropertyID: "prop-1"},
	})
	require.NoError(t, err)

	require.Len(t, results, 2, "below-threshold match should be dropped")
	assert.Equal(t, "m-close", results[0].Memory.ID)
	assert.Equal(t, "m-mid", results[1].Memory.ID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchHonoursMinSimilarity(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["anything"] = []float32{1, 0, 0}
	seedMemory(t, store, "m-1", "weak match", []float64{0.6, 0.8, 0})

	results, err := engine.Search(ctx, Request{
		Query:         "anything",
		Scope:         types.Scope{PropertyID: "prop-1"},
		MinSimilarity: 0.9,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchNegativeMinSimilarityDisablesFloor(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["q"] = []float32{1, 0, 0}
	seedMemory(t, store, "m-close", "aligned", []float64{1, 0, 0})
	seedMemory(t, store, "m-orthogonal", "orthogonal", []float64{0, 1, 0})
	seedMemory(t, store, "m-opposed", "opposed", []float64{-1, 0, 0})

	// Cosine similarity ranges over [-1, 1], so a floor of -1 admits
	// everything with an embedding.
	results, err := engine.Search(ctx, Request{
		Query:         "q",
		Scope:         types.Scope{PropertyID: "prop-1"},
		MinSimilarity: -1,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "m-close", results[0].Memory.ID)
	assert.Equal(t, "m-opposed", results[2].Memory.ID)
	assert.Less(t, results[2].Similarity, 0.0)
}

func TestSearchHonoursLimit(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["q"] = []float32{1, 0, 0}
	for i := 0; i < 5; i++ {
		seedMemory(t, store, fmt.Sprintf("m-%d", i), fmt.Sprintf("memory %d", i), []float64{1, 0, 0})
	}

	results, err := engine.Search(ctx, Request{
		Query: "q",
		Scope: types.Scope{PropertyID: "prop-1"},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchTouchesReturnedMemories(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["q"] = []float32{1, 0, 0}
	seedMemory(t, store, "m-hit", "matching", []float64{1, 0, 0})
	seedMemory(t, store, "m-miss", "orthogonal", []float64{0, 1, 0})

	_, err := engine.Search(ctx, Request{Query: "q", Scope: types.Scope{PropertyID: "prop-1"}})
	require.NoError(t, err)

	hit, err := store.Memories().Get(ctx, "m-hit")
	require.NoError(t, err)
	assert.Equal(t, 1, hit.AccessCount)

	miss, err := store.Memories().Get(ctx, "m-miss")
	require.NoError(t, err)
	assert.Equal(t, 0, miss.AccessCount, "non-returned memory must not be touched")
}

func TestSearchEmbeddingUnavailable(t *testing.T) {
	store, _, _ := newSearchFixture(t)
	ctx := context.Background()

	// Engine with no embedder at all.
	engine := NewEngine(store.Memories(), nil, nil)
	_, err := engine.Search(ctx, Request{Query: "q"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	// Engine whose provider errors out.
	failing := &stubEmbedder{err: errors.New("provider down")}
	engine = NewEngine(store.Memories(), failing, nil)
	_, err = engine.Search(ctx, Request{Query: "q"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestSearchSkipsUnembeddedMemories(t *testing.T) {
	store, engine, embedder := newSearchFixture(t)
	ctx := context.Background()

	embedder.vectors["q"] = []float32{1, 0, 0}
	seedMemory(t, store, "m-embedded", "has vector", []float64{1, 0, 0})
	seedMemory(t, store, "m-bare", "no vector", nil)

	results, err := engine.Search(ctx, Request{Query: "q", Scope: types.Scope{PropertyID: "prop-1"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m-embedded", results[0].Memory.ID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}), "length mismatch scores zero")
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}), "zero norm scores zero")
}
