// Package search implements semantic retrieval over the memory store.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// ErrEmbeddingUnavailable is returned when no embedding provider is
// configured or the provider cannot embed the query. Callers fall back to
// recency-ordered listing.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Result pairs a memory with its similarity to the query.
type Result struct {
	Memory     types.Memory
	Similarity float64
}

// Request describes one semantic search.
type Request struct {
	Query         string
	Scope         types.Scope
	Types         []types.MemoryType
	Limit         int     // default 10
	MinSimilarity float64 // zero takes the 0.5 default; negative disables the floor
}

// Engine ranks candidate memories against a query embedding with a
// brute-force cosine scan. Candidate sets are per-scope and small, so the
// scan stays cheap; the storage layer keeps the option of pushing ranking
// into the database later without changing this contract.
type Engine struct {
	memories storage.MemoryStore
	embedder llm.EmbeddingGenerator // nil when no provider is configured
	logger   *slog.Logger
}

// NewEngine creates a search engine. The embedder may be nil, in which case
// every search returns ErrEmbeddingUnavailable.
func NewEngine(memories storage.MemoryStore, embedder llm.EmbeddingGenerator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{memories: memories, embedder: embedder, logger: logger}
}

// Search embeds the query, scans the in-scope candidates, and returns the
// matches at or above the similarity floor in descending similarity order.
// Returned memories are touched (access_count, last_accessed_at) best-effort.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if req.Limit < 1 {
		req.Limit = 10
	}
	if req.MinSimilarity == 0 {
		req.MinSimilarity = 0.5
	}

	if e.embedder == nil {
		return nil, ErrEmbeddingUnavailable
	}
	queryVec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	query := make([]float64, len(queryVec))
	for i, v := range queryVec {
		query[i] = float64(v)
	}

	candidates, err := e.memories.Candidates(ctx, req.Scope, req.Types)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	var results []Result
	for _, candidate := range candidates {
		sim := cosineSimilarity(query, candidate.Embedding)
		if sim < req.MinSimilarity {
			continue
		}
		results = append(results, Result{Memory: candidate, Similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	for _, r := range results {
		if err := e.memories.Touch(ctx, r.Memory.ID); err != nil {
			e.logger.Warn("failed to touch memory", "memory_id", r.Memory.ID, "error", err)
		}
	}

	return results, nil
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
