// Package memory implements the write/read surface of the agent memory
// store: memories, conversation summaries, and contact preferences.
package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// Service coordinates memory persistence with embedding generation.
// Embeddings are strictly best-effort: a down embedding provider degrades
// semantic search but never loses a write.
type Service struct {
	memories      storage.MemoryStore
	conversations storage.ConversationStore
	preferences   storage.PreferenceStore
	embedder      llm.EmbeddingGenerator // nil when no provider is configured
	logger        *slog.Logger
}

// NewService creates a memory service. The embedder may be nil.
func NewService(store storage.Store, embedder llm.EmbeddingGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		memories:      store.Memories(),
		conversations: store.Conversations(),
		preferences:   store.Preferences(),
		embedder:      embedder,
		logger:        logger,
	}
}

// EmbeddingAvailable reports whether an embedding provider is configured.
func (s *Service) EmbeddingAvailable() bool { return s.embedder != nil }

// CreateMemoryInput is the caller-facing shape for new memories.
type CreateMemoryInput struct {
	Scope      types.Scope
	Type       types.MemoryType
	Content    string
	SourceType types.SourceType
	SourceID   string
	Confidence float64
	Importance float64
	ExpiresAt  *time.Time
	Metadata   map[string]interface{}
	CreatedBy  string
}

// CreateMemory persists a new memory, attaching an embedding when the
// provider is reachable. Embedding failures are logged and swallowed; the
// memory is stored without a vector and stays out of semantic search until
// a content update repairs it.
func (s *Service) CreateMemory(ctx context.Context, input CreateMemoryInput) (*types.Memory, error) {
	memory := &types.Memory{
		ID:         uuid.NewString(),
		PropertyID: input.Scope.PropertyID,
		ContactID:  input.Scope.ContactID,
		Type:       input.Type,
		Content:    input.Content,
		SourceType: input.SourceType,
		SourceID:   input.SourceID,
		Confidence: input.Confidence,
		Importance: input.Importance,
		ExpiresAt:  input.ExpiresAt,
		Metadata:   input.Metadata,
		CreatedBy:  input.CreatedBy,
	}

	s.attachEmbedding(ctx, memory)

	if err := s.memories.Create(ctx, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// GetMemory retrieves a memory by ID.
func (s *Service) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	return s.memories.Get(ctx, id)
}

// UpdateMemoryInput carries the mutable memory fields. Nil pointers leave
// the current value in place.
type UpdateMemoryInput struct {
	Content    *string
	Type       *types.MemoryType
	Confidence *float64
	Importance *float64
	Status     *types.MemoryStatus
	ExpiresAt  *time.Time
	Metadata   map[string]interface{}
}

// UpdateMemory applies a partial update. A content change regenerates the
// embedding (best effort); an embedding failure clears the stale vector so
// search never matches against outdated text.
func (s *Service) UpdateMemory(ctx context.Context, id string, input UpdateMemoryInput) (*types.Memory, error) {
	memory, err := s.memories.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if input.Content != nil && *input.Content != memory.Content {
		memory.Content = *input.Content
		contentChanged = true
	}
	if input.Type != nil {
		memory.Type = *input.Type
	}
	if input.Confidence != nil {
		memory.Confidence = *input.Confidence
	}
	if input.Importance != nil {
		memory.Importance = *input.Importance
	}
	if input.Status != nil {
		memory.Status = *input.Status
	}
	if input.ExpiresAt != nil {
		memory.ExpiresAt = input.ExpiresAt
	}
	if input.Metadata != nil {
		memory.Metadata = input.Metadata
	}

	if contentChanged {
		memory.Embedding = nil
		memory.EmbeddingModel = ""
		memory.EmbeddingDimensions = 0
		s.attachEmbedding(ctx, memory)
	}

	if err := s.memories.Update(ctx, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// ListMemories retrieves memories matching the filter.
func (s *Service) ListMemories(ctx context.Context, filter storage.MemoryFilter) ([]types.Memory, error) {
	return s.memories.List(ctx, filter)
}

// ArchiveMemory soft-retires a memory.
func (s *Service) ArchiveMemory(ctx context.Context, id string) error {
	return s.memories.Archive(ctx, id)
}

// DeleteMemory permanently removes a memory.
func (s *Service) DeleteMemory(ctx context.Context, id string) error {
	return s.memories.Delete(ctx, id)
}

// ExpireDueMemories flips overdue active memories to expired and returns the
// number of rows affected. Run periodically by the server's sweep loop.
func (s *Service) ExpireDueMemories(ctx context.Context) (int, error) {
	n, err := s.memories.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired memories", "count", n)
	}
	return n, nil
}

// CreateSummaryInput is the caller-facing shape for conversation summaries.
type CreateSummaryInput struct {
	Scope            types.Scope
	ConversationType types.SourceType
	SourceID         string
	Summary          string
	KeyPoints        []string
	ActionItems      []string
	Sentiment        string
	SentimentScore   float64
	Topics           []string
	FollowUpRequired bool
	ConversationAt   time.Time
}

// CreateConversationSummary persists a summary with a best-effort embedding
// of the summary text. The write is idempotent per interaction: a second
// summary for the same (conversation_type, source_id) returns created=false
// and leaves the first untouched.
func (s *Service) CreateConversationSummary(ctx context.Context, input CreateSummaryInput) (*types.ConversationSummary, bool, error) {
	summary := &types.ConversationSummary{
		ID:               uuid.NewString(),
		PropertyID:       input.Scope.PropertyID,
		ContactID:        input.Scope.ContactID,
		ConversationType: input.ConversationType,
		SourceID:         input.SourceID,
		Summary:          input.Summary,
		KeyPoints:        input.KeyPoints,
		ActionItems:      input.ActionItems,
		Sentiment:        input.Sentiment,
		SentimentScore:   input.SentimentScore,
		Topics:           input.Topics,
		FollowUpRequired: input.FollowUpRequired,
		ConversationAt:   input.ConversationAt,
	}

	if s.embedder != nil && summary.Summary != "" {
		vec, err := s.embedder.Embed(ctx, summary.Summary)
		if err != nil {
			s.logger.Warn("summary embedding failed, storing without vector",
				"source_id", summary.SourceID, "error", err)
		} else {
			summary.SummaryEmbedding = toFloat64(vec)
		}
	}

	created, err := s.conversations.Create(ctx, summary)
	if err != nil {
		return nil, false, err
	}
	return summary, created, nil
}

// RecentConversations returns the latest summaries for a scope.
func (s *Service) RecentConversations(ctx context.Context, scope types.Scope, limit int) ([]types.ConversationSummary, error) {
	return s.conversations.Recent(ctx, scope, limit)
}

// GetOrCreatePreferences returns a contact's preference record, creating a
// default row on first access.
func (s *Service) GetOrCreatePreferences(ctx context.Context, contactID string) (*types.ContactPreference, error) {
	return s.preferences.GetOrCreate(ctx, contactID)
}

// UpdatePreferences rewrites a contact's preference record.
func (s *Service) UpdatePreferences(ctx context.Context, pref *types.ContactPreference) error {
	return s.preferences.Update(ctx, pref)
}

// attachEmbedding fills the memory's embedding fields when a provider is
// configured and reachable. Failures are logged, never returned.
func (s *Service) attachEmbedding(ctx context.Context, memory *types.Memory) {
	if s.embedder == nil {
		return
	}
	vec, err := s.embedder.Embed(ctx, memory.Content)
	if err != nil {
		s.logger.Warn("embedding failed, storing memory without vector",
			"memory_id", memory.ID, "error", err)
		return
	}
	memory.Embedding = toFloat64(vec)
	memory.EmbeddingModel = s.embedder.GetModel()
	memory.EmbeddingDimensions = len(vec)
}

// toFloat64 widens a provider vector for storage.
func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
