// Package kv provides the persistent settings store: typed JSON values under
// string keys with get/set/delete semantics, backed by SQLite.
package kv

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the settings store consumed by the engine components.
type Store interface {
	// Get unmarshals the value for key into dest. Returns false when the key
	// does not exist.
	Get(key string, dest any) (bool, error)

	// Set stores a JSON-serializable value under key.
	Set(key string, value any) error

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(key string) error
}

// SQLiteStore persists settings in the settings table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves and unmarshals a value by key.
func (s *SQLiteStore) Get(key string, dest any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal setting %q: %w", key, err)
	}
	return true, nil
}

// Set stores a value under key, replacing any previous value.
func (s *SQLiteStore) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %q: %w", key, err)
	}

	now := time.Now().UTC().Unix()
	_, err = s.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to store setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Clear removes all settings. Used by the --reset-state startup flag.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}
