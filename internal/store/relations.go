package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/recallmesh/recallmesh/internal/models"
)

// RelationStore handles memory_relations CRUD on SQLite. Edges are stored
// as ordered pairs; the graph builder writes both directions.
type RelationStore struct {
	db *DB
}

func NewRelationStore(db *DB) *RelationStore {
	return &RelationStore{db: db}
}

// DeleteForMemory removes every edge touching the memory, both directions.
func (s *RelationStore) DeleteForMemory(memoryID string) error {
	_, err := s.db.Exec(`DELETE FROM memory_relations WHERE memory_id = ? OR related_memory_id = ?`,
		memoryID, memoryID)
	if err != nil {
		return fmt.Errorf("delete relations: %w", err)
	}
	return nil
}

// ReplaceForMemory atomically replaces all outgoing edges of a memory.
// Re-linking a memory replaces its edges rather than duplicating them.
func (s *RelationStore) ReplaceForMemory(memoryID string, edges []models.MemoryRelation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace relations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_relations WHERE memory_id = ?`, memoryID); err != nil {
		return fmt.Errorf("clear relations: %w", err)
	}
	for _, e := range edges {
		_, err := tx.Exec(`
			INSERT INTO memory_relations (memory_id, related_memory_id, score, relation_type, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, e.MemoryID, e.RelatedMemoryID, e.Score, string(e.Type), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert relation %s->%s: %w", e.MemoryID, e.RelatedMemoryID, err)
		}
	}
	return tx.Commit()
}

// Upsert inserts or updates a single edge, keeping the higher score.
func (s *RelationStore) Upsert(e models.MemoryRelation) error {
	_, err := s.db.Exec(`
		INSERT INTO memory_relations (memory_id, related_memory_id, score, relation_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id, related_memory_id) DO UPDATE SET
			score = MAX(score, excluded.score),
			relation_type = excluded.relation_type
	`, e.MemoryID, e.RelatedMemoryID, e.Score, string(e.Type), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}

// ListForMemory returns a memory's outgoing edges ordered by score.
func (s *RelationStore) ListForMemory(memoryID string) ([]models.MemoryRelation, error) {
	rows, err := s.db.Query(`
		SELECT memory_id, related_memory_id, score, relation_type, created_at
		FROM memory_relations WHERE memory_id = ?
		ORDER BY score DESC
	`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryRelation
	for rows.Next() {
		var e models.MemoryRelation
		var typ string
		if err := rows.Scan(&e.MemoryID, &e.RelatedMemoryID, &e.Score, &typ, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		e.Type = models.RelationType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountForMemory returns a memory's outgoing edge count.
func (s *RelationStore) CountForMemory(memoryID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_relations WHERE memory_id = ?`, memoryID).Scan(&n)
	return n, err
}

// PruneToDegree removes a memory's weakest outgoing edges beyond maxDegree
// and returns the number removed.
func (s *RelationStore) PruneToDegree(memoryID string, maxDegree int) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM memory_relations
		WHERE memory_id = ? AND related_memory_id NOT IN (
			SELECT related_memory_id FROM memory_relations
			WHERE memory_id = ?
			ORDER BY score DESC
			LIMIT ?
		)
	`, memoryID, memoryID, maxDegree)
	if err != nil {
		return 0, fmt.Errorf("prune relations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteOrphanMirrors removes incoming edges to a memory from sources not
// in keep. After a relink rebuilds a memory's outgoing set, mirrors of the
// dropped edges would otherwise point at it one-way.
func (s *RelationStore) DeleteOrphanMirrors(memoryID string, keep []string) (int, error) {
	query := `DELETE FROM memory_relations WHERE related_memory_id = ?`
	args := []any{memoryID}
	if len(keep) > 0 {
		query += ` AND memory_id NOT IN (?` + strings.Repeat(",?", len(keep)-1) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete orphan mirrors: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteWeak removes edges below minScore, plus edges older than
// staleAfter whose score is below staleMinScore. The age-based threshold
// is looser so weak-but-fresh links survive briefly and age out over time.
// ownerID scopes the pass; empty runs globally.
func (s *RelationStore) DeleteWeak(ownerID string, minScore float64, staleAfter time.Duration, staleMinScore float64) (int, error) {
	staleCutoff := time.Now().Add(-staleAfter).Unix()

	query := `
		DELETE FROM memory_relations
		WHERE (score < ? OR (created_at < ? AND score < ?))
	`
	args := []any{minScore, staleCutoff, staleMinScore}
	if ownerID != "" {
		query += ` AND memory_id IN (SELECT id FROM memories WHERE owner_id = ?)`
		args = append(args, ownerID)
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete weak relations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
