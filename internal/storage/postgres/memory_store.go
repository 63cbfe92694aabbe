package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/pkg/types"
)

// MemoryStore implements storage.MemoryStore using PostgreSQL.
type MemoryStore struct {
	db *sql.DB
}

// memoryColumns is the canonical SELECT column order, shared by every scan
// site in this file. The embedding is cast to text so the scan path does not
// depend on the driver's binary vector support.
const memoryColumns = `
	id, property_id, contact_id, memory_type, content,
	embedding::text, embedding_model, embedding_dimensions,
	source_type, source_id, confidence, importance,
	status, expires_at, access_count, last_accessed_at,
	metadata, created_by, created_at, updated_at`

// Create persists a new memory row.
func (s *MemoryStore) Create(ctx context.Context, memory *types.Memory) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if memory.Content == "" {
		return fmt.Errorf("%w: memory content is required", storage.ErrInvalidInput)
	}

	applyMemoryDefaults(memory)

	metadataJSON, err := marshalJSON(memory.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, property_id, contact_id, memory_type, content,
			embedding, embedding_model, embedding_dimensions,
			source_type, source_id, confidence, importance,
			status, expires_at, access_count, last_accessed_at,
			metadata, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		memory.ID, nullString(memory.PropertyID), nullString(memory.ContactID),
		string(memory.Type), memory.Content,
		vectorValue(memory.Embedding), nullString(memory.EmbeddingModel),
		nullInt(memory.EmbeddingDimensions),
		string(memory.SourceType), nullString(memory.SourceID),
		memory.Confidence, memory.Importance,
		string(memory.Status), nullTime(memory.ExpiresAt),
		memory.AccessCount, nullTime(memory.LastAccessedAt),
		metadataJSON, nullString(memory.CreatedBy),
		memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// Get retrieves a memory by ID regardless of status.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT`+memoryColumns+` FROM memories WHERE id = $1`, id)
	memory, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return memory, nil
}

// Update rewrites a memory row, including its embedding.
func (s *MemoryStore) Update(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	memory.UpdatedAt = time.Now().UTC()

	metadataJSON, err := marshalJSON(memory.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE memories SET
			property_id = $1, contact_id = $2, memory_type = $3, content = $4,
			embedding = $5, embedding_model = $6, embedding_dimensions = $7,
			source_type = $8, source_id = $9, confidence = $10, importance = $11,
			status = $12, expires_at = $13, access_count = $14, last_accessed_at = $15,
			metadata = $16, created_by = $17, updated_at = $18
		WHERE id = $19`,
		nullString(memory.PropertyID), nullString(memory.ContactID),
		string(memory.Type), memory.Content,
		vectorValue(memory.Embedding), nullString(memory.EmbeddingModel),
		nullInt(memory.EmbeddingDimensions),
		string(memory.SourceType), nullString(memory.SourceID),
		memory.Confidence, memory.Importance,
		string(memory.Status), nullTime(memory.ExpiresAt),
		memory.AccessCount, nullTime(memory.LastAccessedAt),
		metadataJSON, nullString(memory.CreatedBy), memory.UpdatedAt,
		memory.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	return requireRow(result)
}

// List retrieves memories matching the filter, ordered by importance
// descending then created_at descending.
func (s *MemoryStore) List(ctx context.Context, filter storage.MemoryFilter) ([]types.Memory, error) {
	filter.Normalize()

	query := `SELECT` + memoryColumns + ` FROM memories WHERE status = $1`
	args := []interface{}{string(filter.Status)}

	query, args = appendScope(query, args, filter.Scope)
	query, args = appendTypes(query, args, filter.Types)

	query += fmt.Sprintf(` ORDER BY importance DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// Archive flips a memory's status to archived.
func (s *MemoryStore) Archive(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET status = $1, updated_at = $2 WHERE id = $3`,
		string(types.MemoryArchived), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive memory: %w", err)
	}
	return requireRow(result)
}

// Delete removes a memory row permanently.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return requireRow(result)
}

// Touch atomically increments access_count and refreshes last_accessed_at.
func (s *MemoryStore) Touch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch memory: %w", err)
	}
	return requireRow(result)
}

// Candidates returns the active, embedded memories in scope for a semantic
// search scan.
func (s *MemoryStore) Candidates(ctx context.Context, scope types.Scope, memTypes []types.MemoryType) ([]types.Memory, error) {
	query := `SELECT` + memoryColumns + ` FROM memories WHERE status = $1 AND embedding IS NOT NULL`
	args := []interface{}{string(types.MemoryActive)}

	query, args = appendScope(query, args, scope)
	query, args = appendTypes(query, args, memTypes)
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// ExpireDue flips active memories whose expires_at has passed to expired.
func (s *MemoryStore) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET status = $1, updated_at = $2 WHERE status = $3 AND expires_at IS NOT NULL AND expires_at <= $4`,
		string(types.MemoryExpired), now, string(types.MemoryActive), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire memories: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired rows: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the shared pool is closed by the parent Store.
func (s *MemoryStore) Close() error { return nil }

// Compile-time assertion.
var _ storage.MemoryStore = (*MemoryStore)(nil)

// applyMemoryDefaults fills zero-value fields before insert.
func applyMemoryDefaults(memory *types.Memory) {
	now := time.Now().UTC()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = now
	}
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = now
	}
	if memory.Status == "" {
		memory.Status = types.MemoryActive
	}
	if memory.Type == "" {
		memory.Type = types.MemoryFact
	}
	if memory.SourceType == "" {
		memory.SourceType = types.SourceSystem
	}
	if memory.Confidence == 0 {
		memory.Confidence = 1.0
	}
	if memory.Importance == 0 {
		memory.Importance = 0.5
	}
}

// appendScope adds property/contact predicates for the non-empty scope fields.
func appendScope(query string, args []interface{}, scope types.Scope) (string, []interface{}) {
	if scope.PropertyID != "" {
		args = append(args, scope.PropertyID)
		query += fmt.Sprintf(` AND property_id = $%d`, len(args))
	}
	if scope.ContactID != "" {
		args = append(args, scope.ContactID)
		query += fmt.Sprintf(` AND contact_id = $%d`, len(args))
	}
	return query, args
}

// appendTypes adds a memory_type IN (...) predicate when types are given.
func appendTypes(query string, args []interface{}, memTypes []types.MemoryType) (string, []interface{}) {
	if len(memTypes) == 0 {
		return query, args
	}
	placeholders := make([]string, len(memTypes))
	for i, t := range memTypes {
		args = append(args, string(t))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query += ` AND memory_type IN (` + strings.Join(placeholders, ", ") + `)`
	return query, args
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory reads one row in memoryColumns order.
func scanMemory(row rowScanner) (*types.Memory, error) {
	var memory types.Memory
	var propertyID, contactID, embeddingModel, sourceID, createdBy sql.NullString
	var metadataJSON, embeddingText sql.NullString
	var embeddingDims sql.NullInt64
	var expiresAt, lastAccessedAt sql.NullTime
	var memType, sourceType, status string

	err := row.Scan(
		&memory.ID, &propertyID, &contactID, &memType, &memory.Content,
		&embeddingText, &embeddingModel, &embeddingDims,
		&sourceType, &sourceID, &memory.Confidence, &memory.Importance,
		&status, &expiresAt, &memory.AccessCount, &lastAccessedAt,
		&metadataJSON, &createdBy, &memory.CreatedAt, &memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	memory.Type = types.MemoryType(memType)
	memory.SourceType = types.SourceType(sourceType)
	memory.Status = types.MemoryStatus(status)
	memory.PropertyID = propertyID.String
	memory.ContactID = contactID.String
	memory.EmbeddingModel = embeddingModel.String
	memory.SourceID = sourceID.String
	memory.CreatedBy = createdBy.String
	if embeddingDims.Valid {
		memory.EmbeddingDimensions = int(embeddingDims.Int64)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		memory.ExpiresAt = &t
	}
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		memory.LastAccessedAt = &t
	}
	if err := unmarshalJSON(metadataJSON, &memory.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	memory.Embedding, err = scanVector(embeddingText)
	if err != nil {
		return nil, fmt.Errorf("scan embedding: %w", err)
	}

	return &memory, nil
}

// scanMemories reads all rows returned by a query.
func scanMemories(rows *sql.Rows) ([]types.Memory, error) {
	var memories []types.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		memories = append(memories, *memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return memories, nil
}

// requireRow converts a zero-rows-affected result to ErrNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// marshalJSON encodes v to a nullable JSONB column value. Nil/empty values
// map to SQL NULL.
func marshalJSON(v interface{}) (sql.NullString, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]interface{}:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case nil:
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON decodes a nullable JSONB column into dest; NULL is a no-op.
func unmarshalJSON(ns sql.NullString, dest interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), dest)
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime maps a nil pointer to SQL NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullInt maps zero to SQL NULL.
func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
