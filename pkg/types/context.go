package types

import "time"

// PropertyInfo is the read-only property detail pulled from the property
// directory collaborator when assembling context.
type PropertyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Type        string `json:"type,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContactInfo is the read-only contact detail pulled from the contact
// directory collaborator.
type ContactInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Type    string `json:"type,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// ContextMemory is the slim projection of a memory carried inside an
// assembled context.
type ContextMemory struct {
	Content    string     `json:"content"`
	Type       MemoryType `json:"type"`
	Importance float64    `json:"importance"`
}

// ContextCommitment is an open commitment carried inside an assembled
// context, with its age for prompt rendering.
type ContextCommitment struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextConversation is a recent conversation digest carried inside an
// assembled context.
type ContextConversation struct {
	Summary     string    `json:"summary"`
	Date        time.Time `json:"date"`
	Sentiment   string    `json:"sentiment,omitempty"`
	ActionItems []string  `json:"action_items,omitempty"`
}

// AgentContext is everything the system knows that is relevant to one agent
// action, assembled into a single payload. Every section degrades
// independently: a failed sub-fetch leaves its section empty rather than
// failing the build.
type AgentContext struct {
	Property    *PropertyInfo      `json:"property,omitempty"`
	Contact     *ContactInfo       `json:"contact,omitempty"`
	Preferences *ContactPreference `json:"preferences,omitempty"`

	Memories            []ContextMemory       `json:"memories,omitempty"`
	OpenCommitments     []ContextCommitment   `json:"open_commitments,omitempty"`
	RecentConversations []ContextConversation `json:"recent_conversations,omitempty"`

	// SystemInstructions carry safety warnings derived from preferences
	// (do-not-call, do-not-text, preferred time, formality level).
	SystemInstructions []string `json:"system_instructions,omitempty"`
}

// ExtractedMemory is one memory produced by the extraction pipeline before
// persistence.
type ExtractedMemory struct {
	Content    string     `json:"content"`
	Type       MemoryType `json:"memory_type"`
	Confidence float64    `json:"confidence"`
	Importance float64    `json:"importance"`
}

// ExtractionResult is the structured output of running raw interaction text
// through the language model. A malformed model response yields the zero
// value (no memories, empty summary) rather than an error.
type ExtractionResult struct {
	Memories       []ExtractedMemory `json:"memories"`
	Summary        string            `json:"summary,omitempty"`
	KeyPoints      []string          `json:"key_points,omitempty"`
	ActionItems    []string          `json:"action_items,omitempty"`
	Sentiment      string            `json:"sentiment,omitempty"`
	SentimentScore float64           `json:"sentiment_score,omitempty"`
}

// Empty reports whether extraction produced nothing usable.
func (r *ExtractionResult) Empty() bool {
	return len(r.Memories) == 0 && r.Summary == ""
}
