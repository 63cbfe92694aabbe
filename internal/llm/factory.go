package llm

import "fmt"

// ProviderConfig selects and configures a text-generation provider.
type ProviderConfig struct {
	Provider string // "anthropic" or "openai"
	APIKey   string
	Model    string
}

// NewTextGenerator constructs the configured completion client.
func NewTextGenerator(cfg ProviderConfig) (TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator constructs the embedding client with an LRU cache in
// front of it. Returns ErrNotConfigured when no key is set; callers treat a
// missing embedder as a degraded mode, not a startup failure.
func NewEmbeddingGenerator(apiKey, model string, cacheSize int) (EmbeddingGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client := NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{APIKey: apiKey, Model: model})
	return NewCachedEmbeddingGenerator(client, cacheSize)
}
