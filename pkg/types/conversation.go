package types

import "time"

// Sentiment values produced by extraction.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// IsValidSentiment reports whether s is a recognized sentiment label.
func IsValidSentiment(s string) bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// ConversationSummary is a derived record of what happened in one call or
// SMS thread. At most one summary exists per (conversation_type, source_id)
// pair; the stores enforce this with a uniqueness constraint so reprocessing
// a webhook cannot duplicate the row.
type ConversationSummary struct {
	ID string `json:"id"`

	// Scope
	PropertyID string `json:"property_id"`
	ContactID  string `json:"contact_id,omitempty"`

	// Which interaction this summarizes.
	ConversationType SourceType `json:"conversation_type"`
	SourceID         string     `json:"source_id"`

	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points,omitempty"`
	ActionItems    []string `json:"action_items,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	SentimentScore float64  `json:"sentiment_score,omitempty"` // -1.0 to 1.0
	Topics         []string `json:"topics,omitempty"`

	// Follow-up fields are the only mutable part of the record.
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
	FollowUpNotes    string     `json:"follow_up_notes,omitempty"`

	// Best-effort embedding of the summary text.
	SummaryEmbedding []float64 `json:"summary_embedding,omitempty"`

	// ConversationAt is when the interaction happened; ProcessedAt is when
	// extraction ran. The two can differ by hours for queued webhooks.
	ConversationAt time.Time `json:"conversation_at"`
	ProcessedAt    time.Time `json:"processed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
