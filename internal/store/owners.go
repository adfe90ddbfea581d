package store

import (
	"fmt"
	"time"
)

// OwnerStore handles owner bookkeeping on SQLite.
type OwnerStore struct {
	db *DB
}

func NewOwnerStore(db *DB) *OwnerStore {
	return &OwnerStore{db: db}
}

// Ensure registers the owner if unknown and bumps last_seen_at.
func (s *OwnerStore) Ensure(ownerID string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO owners (id, created_at, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_at = ?
	`, ownerID, now, now, now)
	if err != nil {
		return fmt.Errorf("ensure owner: %w", err)
	}
	return nil
}

// Exists reports whether the owner is registered.
func (s *OwnerStore) Exists(ownerID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM owners WHERE id = ?`, ownerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check owner: %w", err)
	}
	return n > 0, nil
}
