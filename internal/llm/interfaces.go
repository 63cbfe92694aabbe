// Package llm provides language-model and embedding provider clients plus
// the prompt and response-parsing machinery built on top of them.
package llm

import (
	"context"
	"errors"
)

// EmbeddingDimensions is the vector size produced by the default embedding
// model (text-embedding-3-small).
const EmbeddingDimensions = 1536

// ErrNotConfigured is returned when a provider client is requested but no
// API key was supplied.
var ErrNotConfigured = errors.New("llm provider not configured")

// TextGenerator is the interface for text completion. All prompts use
// single-string completion style; system prompts are folded into the prompt
// text by the builders in prompts.go.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Returns float32 slice; callers convert to float64 for storage.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
