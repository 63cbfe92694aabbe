package llm

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbeddingGenerator wraps an EmbeddingGenerator with an in-process LRU
// cache keyed by the exact input text. Context assembly re-embeds the same
// purposes and memory contents often enough that this saves real provider
// traffic.
type CachedEmbeddingGenerator struct {
	inner EmbeddingGenerator
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbeddingGenerator wraps inner with a cache of the given size.
// Size defaults to 1024 entries when non-positive.
func NewCachedEmbeddingGenerator(inner EmbeddingGenerator, size int) (*CachedEmbeddingGenerator, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbeddingGenerator{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text when present, otherwise delegates
// to the wrapped generator. Errors are never cached.
func (c *CachedEmbeddingGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// GetModel returns the wrapped generator's model name.
func (c *CachedEmbeddingGenerator) GetModel() string { return c.inner.GetModel() }

// Compile-time assertion.
var _ EmbeddingGenerator = (*CachedEmbeddingGenerator)(nil)
