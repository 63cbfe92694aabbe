// Package storage provides the persistence interfaces for the Liaison agent
// core.
//
// The layer is designed with small, focused interfaces that can be implemented
// independently per backend (SQLite by default, PostgreSQL with pgvector for
// larger deployments) and composed as needed.
package storage

import (
	"context"
	"time"

	"github.com/liaisonhq/liaison/pkg/types"
)

// MemoryStore provides durable CRUD and lifecycle operations for memories.
// Embedding generation is not a storage concern; callers attach embeddings
// to the Memory before persisting.
type MemoryStore interface {
	// Create persists a new memory. The ID must already be assigned.
	Create(ctx context.Context, memory *types.Memory) error

	// Get retrieves a memory by ID regardless of status.
	// Returns ErrNotFound if the memory doesn't exist.
	Get(ctx context.Context, id string) (*types.Memory, error)

	// Update rewrites a memory row, including its embedding.
	// Returns ErrNotFound if the memory doesn't exist.
	Update(ctx context.Context, memory *types.Memory) error

	// List retrieves memories matching the filter, ordered by importance
	// descending then created_at descending.
	List(ctx context.Context, filter MemoryFilter) ([]types.Memory, error)

	// Archive flips a memory's status to archived.
	// Returns ErrNotFound if the memory doesn't exist.
	Archive(ctx context.Context, id string) error

	// Delete removes the row permanently. Only an explicit user request
	// should reach this; everything else archives.
	Delete(ctx context.Context, id string) error

	// Touch atomically increments access_count and refreshes
	// last_accessed_at. Called by every read path that returns the memory
	// into an agent-facing response.
	Touch(ctx context.Context, id string) error

	// Candidates returns the active, embedded memories in scope for a
	// semantic search scan, optionally restricted by type.
	Candidates(ctx context.Context, scope types.Scope, memTypes []types.MemoryType) ([]types.Memory, error)

	// ExpireDue flips active memories whose expires_at has passed to
	// expired. Returns the number of rows updated.
	ExpireDue(ctx context.Context, now time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// ConversationStore provides durable CRUD for conversation summaries.
type ConversationStore interface {
	// Create persists a summary. It is idempotent on
	// (conversation_type, source_id): if a summary for that source already
	// exists the call is a no-op and returns created=false.
	Create(ctx context.Context, summary *types.ConversationSummary) (created bool, err error)

	// Get retrieves a summary by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*types.ConversationSummary, error)

	// Recent returns the most recent summaries for a scope, ordered by
	// conversation_at descending.
	Recent(ctx context.Context, scope types.Scope, limit int) ([]types.ConversationSummary, error)

	// UpdateFollowUp mutates the follow-up fields, the only part of a
	// summary that changes after creation.
	UpdateFollowUp(ctx context.Context, id string, required bool, date *time.Time, notes string) error
}

// PreferenceStore provides per-contact communication preference rows.
type PreferenceStore interface {
	// GetOrCreate returns the preference row for a contact, inserting a
	// default row first if none exists.
	GetOrCreate(ctx context.Context, contactID string) (*types.ContactPreference, error)

	// Update rewrites a preference row (last-write-wins).
	// Returns ErrNotFound if the row doesn't exist.
	Update(ctx context.Context, pref *types.ContactPreference) error
}

// TaskStore provides durable rows for agent tasks and their step ledger.
type TaskStore interface {
	// Create persists a new task.
	Create(ctx context.Context, task *types.AgentTask) error

	// Get retrieves a task by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*types.AgentTask, error)

	// Update rewrites a task row. Returns ErrNotFound if absent.
	Update(ctx context.Context, task *types.AgentTask) error

	// List retrieves tasks matching the filter, newest first.
	List(ctx context.Context, filter TaskFilter) ([]types.AgentTask, error)

	// FindByAction looks a task up by the external call or SMS id linked
	// to it. Exactly one of callID/smsID should be non-empty.
	// Returns ErrNotFound when no task references the id.
	FindByAction(ctx context.Context, callID, smsID string) (*types.AgentTask, error)

	// AddStep appends a step to a task's audit ledger.
	AddStep(ctx context.Context, step *types.AgentTaskStep) error

	// Steps returns a task's steps ordered by step_number.
	Steps(ctx context.Context, taskID string) ([]types.AgentTaskStep, error)
}

// Store bundles the four stores a fully wired deployment needs.
type Store interface {
	Memories() MemoryStore
	Conversations() ConversationStore
	Preferences() PreferenceStore
	Tasks() TaskStore
	Close() error
}
