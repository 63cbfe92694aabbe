package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// ConversationStore implements storage.ConversationStore using SQLite.
type ConversationStore struct {
	db *sql.DB
}

const conversationColumns = `
	id, property_id, contact_id, conversation_type, source_id,
	summary, key_points, action_items, sentiment, sentiment_score, topics,
	follow_up_required, follow_up_date, follow_up_notes,
	summary_embedding, conversation_at, processed_at, created_at, updated_at`

// Create persists a conversation summary. The insert is idempotent on
// (conversation_type, source_id): reprocessing the same interaction leaves
// the existing row untouched and returns created=false.
func (s *ConversationStore) Create(ctx context.Context, summary *types.ConversationSummary) (bool, error) {
	if summary == nil {
		return false, storage.ErrInvalidInput
	}
	if summary.ID == "" {
		return false, fmt.Errorf("%w: summary ID is required", storage.ErrInvalidInput)
	}
	if summary.SourceID == "" || summary.ConversationType == "" {
		return false, fmt.Errorf("%w: conversation source reference is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = now
	}
	if summary.ProcessedAt.IsZero() {
		summary.ProcessedAt = now
	}
	if summary.ConversationAt.IsZero() {
		summary.ConversationAt = now
	}

	keyPointsJSON, err := marshalJSON(summary.KeyPoints)
	if err != nil {
		return false, fmt.Errorf("failed to marshal key_points: %w", err)
	}
	actionItemsJSON, err := marshalJSON(summary.ActionItems)
	if err != nil {
		return false, fmt.Errorf("failed to marshal action_items: %w", err)
	}
	topicsJSON, err := marshalJSON(summary.Topics)
	if err != nil {
		return false, fmt.Errorf("failed to marshal topics: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, property_id, contact_id, conversation_type, source_id,
			summary, key_points, action_items, sentiment, sentiment_score, topics,
			follow_up_required, follow_up_date, follow_up_notes,
			summary_embedding, conversation_at, processed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_type, source_id) DO NOTHING`,
		summary.ID, summary.PropertyID, nullString(summary.ContactID),
		string(summary.ConversationType), summary.SourceID,
		summary.Summary, keyPointsJSON, actionItemsJSON,
		nullString(summary.Sentiment), summary.SentimentScore, topicsJSON,
		summary.FollowUpRequired, nullTime(summary.FollowUpDate), nullString(summary.FollowUpNotes),
		serializeEmbedding(summary.SummaryEmbedding),
		summary.ConversationAt, summary.ProcessedAt, summary.CreatedAt, summary.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert conversation summary: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a summary by ID.
func (s *ConversationStore) Get(ctx context.Context, id string) (*types.ConversationSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+conversationColumns+` FROM conversations WHERE id = ?`, id)
	summary, err := scanConversation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation summary: %w", err)
	}
	return summary, nil
}

// Recent returns the most recent summaries for a scope, newest conversation
// first.
func (s *ConversationStore) Recent(ctx context.Context, scope types.Scope, limit int) ([]types.ConversationSummary, error) {
	if limit < 1 {
		limit = 5
	}

	query := `SELECT` + conversationColumns + ` FROM conversations WHERE 1=1`
	var args []interface{}
	if scope.PropertyID != "" {
		query += ` AND property_id = ?`
		args = append(args, scope.PropertyID)
	}
	if scope.ContactID != "" {
		query += ` AND contact_id = ?`
		args = append(args, scope.ContactID)
	}
	query += ` ORDER BY conversation_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []types.ConversationSummary
	for rows.Next() {
		summary, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return summaries, nil
}

// UpdateFollowUp mutates the follow-up fields of a summary.
func (s *ConversationStore) UpdateFollowUp(ctx context.Context, id string, required bool, date *time.Time, notes string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			follow_up_required = ?, follow_up_date = ?, follow_up_notes = ?, updated_at = ?
		WHERE id = ?`,
		required, nullTime(date), nullString(notes), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update follow-up: %w", err)
	}
	return requireRow(result)
}

// Compile-time assertion.
var _ storage.ConversationStore = (*ConversationStore)(nil)

// scanConversation reads one row in conversationColumns order.
func scanConversation(row rowScanner) (*types.ConversationSummary, error) {
	var summary types.ConversationSummary
	var contactID, sentiment, followUpNotes sql.NullString
	var keyPointsJSON, actionItemsJSON, topicsJSON sql.NullString
	var sentimentScore sql.NullFloat64
	var followUpDate sql.NullTime
	var embeddingBlob []byte
	var conversationType string

	err := row.Scan(
		&summary.ID, &summary.PropertyID, &contactID, &conversationType, &summary.SourceID,
		&summary.Summary, &keyPointsJSON, &actionItemsJSON, &sentiment, &sentimentScore, &topicsJSON,
		&summary.FollowUpRequired, &followUpDate, &followUpNotes,
		&embeddingBlob, &summary.ConversationAt, &summary.ProcessedAt,
		&summary.CreatedAt, &summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	summary.ConversationType = types.SourceType(conversationType)
	summary.ContactID = contactID.String
	summary.Sentiment = sentiment.String
	summary.FollowUpNotes = followUpNotes.String
	if sentimentScore.Valid {
		summary.SentimentScore = sentimentScore.Float64
	}
	if followUpDate.Valid {
		t := followUpDate.Time
		summary.FollowUpDate = &t
	}
	if err := unmarshalJSON(keyPointsJSON, &summary.KeyPoints); err != nil {
		return nil, fmt.Errorf("unmarshal key_points: %w", err)
	}
	if err := unmarshalJSON(actionItemsJSON, &summary.ActionItems); err != nil {
		return nil, fmt.Errorf("unmarshal action_items: %w", err)
	}
	if err := unmarshalJSON(topicsJSON, &summary.Topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	summary.SummaryEmbedding, err = deserializeEmbedding(embeddingBlob)
	if err != nil {
		return nil, fmt.Errorf("deserialize summary embedding: %w", err)
	}

	return &summary, nil
}
