package store

import (
	"database/sql"
	"fmt"

	"github.com/recallmesh/recallmesh/internal/models"
)

// SnapshotStore persists immutable raw-text/summary audit records.
type SnapshotStore struct {
	db *DB
}

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Insert stores a snapshot. Duplicate summary fingerprints are ignored:
// the snapshot layer deduplicates identical summaries globally, and
// at-least-once job delivery means the same snapshot may be written twice.
func (s *SnapshotStore) Insert(snap *models.MemorySnapshot) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO memory_snapshots
			(id, owner_id, raw_text, summary, summary_fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.OwnerID, snap.RawText, snap.Summary, snap.SummaryFingerprint, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// FindBySummaryFingerprint returns the snapshot holding the given summary
// fingerprint, or nil.
func (s *SnapshotStore) FindBySummaryFingerprint(fp string) (*models.MemorySnapshot, error) {
	var snap models.MemorySnapshot
	err := s.db.QueryRow(`
		SELECT id, owner_id, raw_text, summary, summary_fingerprint, created_at
		FROM memory_snapshots WHERE summary_fingerprint = ?
	`, fp).Scan(&snap.ID, &snap.OwnerID, &snap.RawText, &snap.Summary, &snap.SummaryFingerprint, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	return &snap, nil
}

// CountByOwner returns the number of snapshots recorded for an owner.
func (s *SnapshotStore) CountByOwner(ownerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_snapshots WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}
