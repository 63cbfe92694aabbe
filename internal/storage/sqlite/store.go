// Package sqlite implements the storage interfaces on modernc.org/sqlite.
// It is the default backend: zero external services, CGO-free, and adequate
// for the per-scope data volumes the agent core is designed around.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/liaisonhq/liaison/internal/storage"
)

// Store bundles the four sub-stores over one SQLite handle.
type Store struct {
	db            *sql.DB
	memories      *MemoryStore
	conversations *ConversationStore
	preferences   *PreferenceStore
	tasks         *TaskStore
}

// Open opens a SQLite database, configures WAL mode, and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing immediately when the connection is held by
	// another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:            db,
		memories:      &MemoryStore{db: db},
		conversations: &ConversationStore{db: db},
		preferences:   &PreferenceStore{db: db},
		tasks:         &TaskStore{db: db},
	}, nil
}

// Memories returns the memory sub-store.
func (s *Store) Memories() storage.MemoryStore { return s.memories }

// Conversations returns the conversation sub-store.
func (s *Store) Conversations() storage.ConversationStore { return s.conversations }

// Preferences returns the preference sub-store.
func (s *Store) Preferences() storage.PreferenceStore { return s.preferences }

// Tasks returns the task sub-store.
func (s *Store) Tasks() storage.TaskStore { return s.tasks }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)

// serializeEmbedding converts a float64 slice to a little-endian binary BLOB.
func serializeEmbedding(embedding []float64) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*8)
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// deserializeEmbedding converts a little-endian binary BLOB back to floats.
func deserializeEmbedding(buf []byte) ([]float64, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("embedding blob size %d is not a multiple of 8", len(buf))
	}
	embedding := make([]float64, len(buf)/8)
	for i := range embedding {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return embedding, nil
}

// marshalJSON encodes v to a nullable TEXT column value. Nil/empty values
// map to SQL NULL so the column stays queryable for "absent".
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

// unmarshalJSON decodes a nullable TEXT column into dest; NULL is a no-op.
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
