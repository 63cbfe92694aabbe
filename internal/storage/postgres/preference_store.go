package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// PreferenceStore implements storage.PreferenceStore using PostgreSQL.
type PreferenceStore struct {
	db *sql.DB
}

const preferenceColumns = `
	id, contact_id, preferred_channel, preferred_time, preferred_days,
	timezone, formality_level, language,
	do_not_call, do_not_text, do_not_email,
	notes, created_at, updated_at`

// GetOrCreate returns the preference row for a contact, inserting a default
// row first if none exists. The UNIQUE(contact_id) constraint plus
// insert-or-ignore keeps concurrent first accesses from racing into two rows.
func (s *PreferenceStore) GetOrCreate(ctx context.Context, contactID string) (*types.ContactPreference, error) {
	if contactID == "" {
		return nil, fmt.Errorf("%w: contact ID is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_preferences (id, contact_id, language, created_at, updated_at)
		VALUES ($1, $2, 'en', $3, $4)
		ON CONFLICT (contact_id) DO NOTHING`,
		uuid.NewString(), contactID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure preference row: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+preferenceColumns+` FROM contact_preferences WHERE contact_id = $1`, contactID)
	pref, err := scanPreference(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get preference row: %w", err)
	}
	return pref, nil
}

// Update rewrites a preference row. Last write wins.
func (s *PreferenceStore) Update(ctx context.Context, pref *types.ContactPreference) error {
	if pref == nil || pref.ContactID == "" {
		return fmt.Errorf("%w: contact ID is required", storage.ErrInvalidInput)
	}

	pref.UpdatedAt = time.Now().UTC()

	daysJSON, err := marshalJSON(pref.PreferredDays)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred_days: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE contact_preferences SET
			preferred_channel = $1, preferred_time = $2, preferred_days = $3,
			timezone = $4, formality_level = $5, language = $6,
			do_not_call = $7, do_not_text = $8, do_not_email = $9,
			notes = $10, updated_at = $11
		WHERE contact_id = $12`,
		nullString(pref.PreferredChannel), nullString(pref.PreferredTime), daysJSON,
		nullString(pref.Timezone), nullString(pref.FormalityLevel), pref.Language,
		pref.DoNotCall, pref.DoNotText, pref.DoNotEmail,
		nullString(pref.Notes), pref.UpdatedAt, pref.ContactID,
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return requireRow(result)
}

// Compile-time assertion.
var _ storage.PreferenceStore = (*PreferenceStore)(nil)

// scanPreference reads one row in preferenceColumns order.
func scanPreference(row rowScanner) (*types.ContactPreference, error) {
	var pref types.ContactPreference
	var channel, prefTime, timezone, formality, notes sql.NullString
	var daysJSON sql.NullString

	err := row.Scan(
		&pref.ID, &pref.ContactID, &channel, &prefTime, &daysJSON,
		&timezone, &formality, &pref.Language,
		&pref.DoNotCall, &pref.DoNotText, &pref.DoNotEmail,
		&notes, &pref.CreatedAt, &pref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pref.PreferredChannel = channel.String
	pref.PreferredTime = prefTime.String
	pref.Timezone = timezone.String
	pref.FormalityLevel = formality.String
	pref.Notes = notes.String
	if err := unmarshalJSON(daysJSON, &pref.PreferredDays); err != nil {
		return nil, fmt.Errorf("unmarshal preferred_days: %w", err)
	}

	return &pref, nil
}
