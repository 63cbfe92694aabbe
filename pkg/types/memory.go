package types

import "time"

// MemoryType classifies what kind of knowledge a memory carries.
type MemoryType string

const (
	MemoryFact         MemoryType = "fact"         // Learned facts about a contact/property
	MemoryPreference   MemoryType = "preference"   // Communication or scheduling preferences
	MemoryCommitment   MemoryType = "commitment"   // Things someone committed to doing
	MemoryRelationship MemoryType = "relationship" // Relationships between people/entities
	MemoryContext      MemoryType = "context"      // General context for future interactions
	MemorySummary      MemoryType = "summary"      // Conversation summaries stored as memories
)

// IsValidMemoryType reports whether s is a recognized memory type value.
func IsValidMemoryType(s string) bool {
	switch MemoryType(s) {
	case MemoryFact, MemoryPreference, MemoryCommitment, MemoryRelationship, MemoryContext, MemorySummary:
		return true
	}
	return false
}

// ParseMemoryType maps a raw string to a MemoryType. Unrecognized values
// default to MemoryFact rather than being dropped, so a language model
// inventing a new label never loses the extracted content.
func ParseMemoryType(s string) MemoryType {
	if IsValidMemoryType(s) {
		return MemoryType(s)
	}
	return MemoryFact
}

// SourceType identifies where a memory or conversation came from.
type SourceType string

const (
	SourcePhoneCall SourceType = "phone_call"
	SourceSMS       SourceType = "sms"
	SourceNote      SourceType = "note"
	SourceUserInput SourceType = "user_input"
	SourceSystem    SourceType = "system"
)

// Label returns a human-readable form of the source type for prompt text.
func (s SourceType) Label() string {
	switch s {
	case SourcePhoneCall:
		return "phone call"
	case SourceSMS:
		return "SMS conversation"
	case SourceNote:
		return "note"
	case SourceUserInput:
		return "user input"
	case SourceSystem:
		return "system event"
	default:
		return "conversation"
	}
}

// MemoryStatus is the lifecycle status of a memory.
type MemoryStatus string

const (
	MemoryActive   MemoryStatus = "active"
	MemoryArchived MemoryStatus = "archived"
	MemoryExpired  MemoryStatus = "expired"
)

// Scope is the (property, contact) pair a memory, conversation, or task is
// attached to. Either field may be empty; a fully empty scope is global.
type Scope struct {
	PropertyID string `json:"property_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`
}

// IsZero reports whether the scope has neither a property nor a contact.
func (s Scope) IsZero() bool {
	return s.PropertyID == "" && s.ContactID == ""
}

// Memory is a single atomic fact, preference, commitment, or piece of context
// learned about a scope. Memories are additive evidence, not a single source
// of truth: duplicates from concurrent extraction are acceptable.
type Memory struct {
	ID string `json:"id"`

	// Scope - what this memory relates to. Both empty means global.
	PropertyID string `json:"property_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`

	Type    MemoryType `json:"memory_type"`
	Content string     `json:"content"`

	// Embedding is absent (nil) when the embedding provider was unavailable
	// at write time. Such memories are excluded from semantic search until
	// the embedding is repaired by a content update.
	Embedding           []float64 `json:"embedding,omitempty"`
	EmbeddingModel      string    `json:"embedding_model,omitempty"`
	EmbeddingDimensions int       `json:"embedding_dimensions,omitempty"`

	// Source tracking for traceability back to the originating interaction.
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id,omitempty"`

	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	Importance float64 `json:"importance"` // 0.0 to 1.0, for prioritization

	Status    MemoryStatus `json:"status"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`

	// Usage tracking. Touched on every agent-facing read so importance can
	// later be inferred from recency of use.
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEmbedding reports whether the memory carries a usable embedding vector.
func (m *Memory) HasEmbedding() bool {
	return len(m.Embedding) > 0
}
