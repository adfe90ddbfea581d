package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/recallmesh/recallmesh/internal/models"
)

// memoryColumns is the canonical column list for all SELECT queries.
// Order must match scanMemory.
const memoryColumns = `id, owner_id, url, title, content, summary,
	canonical_text, fingerprint, importance, access_count,
	last_accessed_at, metadata, created_at`

// MemoryStore handles Memory CRUD operations on SQLite.
type MemoryStore struct {
	db *DB
}

func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Insert stores a new memory. The caller must set ID, Fingerprint and
// CreatedAt. The (owner_id, fingerprint) unique index rejects duplicates.
func (s *MemoryStore) Insert(m *models.Memory) error {
	var metaJSON []byte
	if m.Metadata != nil {
		metaJSON, _ = json.Marshal(m.Metadata)
	}

	_, err := s.db.Exec(`
		INSERT INTO memories (
			id, owner_id, url, title, content, summary,
			canonical_text, fingerprint, importance, access_count,
			last_accessed_at, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.OwnerID, m.URL, m.Title, m.Content, m.Summary,
		m.CanonicalText, m.Fingerprint, m.Importance, m.AccessCount,
		m.LastAccessedAt, nullableString(metaJSON), m.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("insert memory: %w", models.ErrDuplicateContent)
		}
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// GetByID fetches a single memory by ID. Returns nil when absent.
func (s *MemoryStore) GetByID(id string) (*models.Memory, error) {
	m, err := scanMemory(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM memories WHERE id = ?`, memoryColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// FindByFingerprint returns the owner's memory with the given canonical
// fingerprint, or nil.
func (s *MemoryStore) FindByFingerprint(ownerID, fingerprint string) (*models.Memory, error) {
	m, err := scanMemory(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM memories WHERE owner_id = ? AND fingerprint = ?`, memoryColumns),
		ownerID, fingerprint))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListByOwner returns all memories for an owner, newest first.
func (s *MemoryStore) ListByOwner(ownerID string) ([]*models.Memory, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM memories WHERE owner_id = ? ORDER BY created_at DESC`, memoryColumns),
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByIDs fetches memories for a set of IDs. Missing IDs are skipped.
func (s *MemoryStore) GetByIDs(ids []string) ([]*models.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM memories WHERE id IN (%s)`, memoryColumns, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("get memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// TouchAccess bumps access counts and last-accessed timestamps for the
// given memories after they are returned from a search.
func (s *MemoryStore) TouchAccess(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().Unix()
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := []any{now}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id IN (%s)`, placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("touch access: %w", err)
	}
	return nil
}

// KeywordCandidates returns memories where any query token appears in the
// title, summary, content or URL. Recall only; the keyword relevance
// heuristic scores the candidates afterwards.
func (s *MemoryStore) KeywordCandidates(ownerID string, tokens []string, limit int) ([]*models.Memory, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var clauses []string
	args := []any{ownerID}
	for _, tok := range tokens {
		pat := "%" + escapeLike(tok) + "%"
		clauses = append(clauses,
			`(title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat, pat, pat)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM memories WHERE owner_id = ? AND (%s) ORDER BY created_at DESC LIMIT ?`,
		memoryColumns, strings.Join(clauses, " OR "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword candidates: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Delete removes a memory row.
func (s *MemoryStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete memory %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CountByOwner returns the number of memories an owner holds.
func (s *MemoryStore) CountByOwner(ownerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*models.Memory, error) {
	var m models.Memory
	var url, title, summary, metaJSON sql.NullString
	var lastAccessed sql.NullInt64

	err := row.Scan(
		&m.ID, &m.OwnerID, &url, &title, &m.Content, &summary,
		&m.CanonicalText, &m.Fingerprint, &m.Importance, &m.AccessCount,
		&lastAccessed, &metaJSON, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.URL = url.String
	m.Title = title.String
	m.Summary = summary.String
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Int64
	}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*models.Memory, error) {
	var out []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
