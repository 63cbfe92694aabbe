package types

import "time"

// ContactPreference holds per-contact communication preferences. Exactly one
// row exists per contact; it is auto-created with defaults on first access.
//
// The three DoNot* booleans are hard stops: the orchestrator refuses to
// dispatch the corresponding action class when one is set, regardless of
// auto-execute mode.
type ContactPreference struct {
	ID        string `json:"id"`
	ContactID string `json:"contact_id"`

	PreferredChannel string   `json:"preferred_channel,omitempty"` // phone, sms, email
	PreferredTime    string   `json:"preferred_time,omitempty"`    // "morning", "after 5pm", etc.
	PreferredDays    []string `json:"preferred_days,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`

	FormalityLevel string `json:"formality_level,omitempty"` // formal, casual, friendly
	Language       string `json:"language,omitempty"`

	DoNotCall  bool `json:"do_not_call"`
	DoNotText  bool `json:"do_not_text"`
	DoNotEmail bool `json:"do_not_email"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
