package models

// Metadata is the free-form metadata map attached to a memory at capture
// time (topics, category, sentiment, source page details, ...).
type Metadata map[string]any

// StringValue returns the metadata value for key as a string, or "" when
// absent or not a string.
func (m Metadata) StringValue(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// StringList returns the metadata value for key as a string slice. JSON
// round-trips turn lists into []any, so both shapes are accepted.
func (m Metadata) StringList(key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Memory is a captured, summarized unit of content.
type Memory struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"ownerId"`
	URL            string   `json:"url,omitempty"`
	Title          string   `json:"title,omitempty"`
	Content        string   `json:"content"`
	Summary        string   `json:"summary,omitempty"`
	CanonicalText  string   `json:"-"`
	Fingerprint    string   `json:"fingerprint"`
	Importance     float64  `json:"importance"`
	AccessCount    int      `json:"accessCount"`
	LastAccessedAt *int64   `json:"lastAccessedAt,omitempty"`
	Metadata       Metadata `json:"metadata,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
}

// Category returns the memory's category from metadata, or "".
func (m *Memory) Category() string {
	return m.Metadata.StringValue("category")
}

// Topics returns the union of the topics and categories metadata lists.
func (m *Memory) Topics() []string {
	topics := m.Metadata.StringList("topics")
	return append(topics, m.Metadata.StringList("categories")...)
}

// MemorySnapshot is an immutable audit record pairing raw captured text
// with the summary produced for it. Never mutated or deleted.
type MemorySnapshot struct {
	ID                 string `json:"id"`
	OwnerID            string `json:"ownerId"`
	RawText            string `json:"rawText"`
	Summary            string `json:"summary"`
	SummaryFingerprint string `json:"summaryFingerprint"`
	CreatedAt          int64  `json:"createdAt"`
}

// RelationType classifies the channel that produced a relation edge.
type RelationType string

const (
	RelationSemantic RelationType = "semantic"
	RelationTopical  RelationType = "topical"
	RelationTemporal RelationType = "temporal"
)

// MemoryRelation is a weighted edge between two memories of the same owner.
// (MemoryID, RelatedMemoryID) is unique per ordered pair; no self-loops.
type MemoryRelation struct {
	MemoryID        string       `json:"memoryId"`
	RelatedMemoryID string       `json:"relatedMemoryId"`
	Score           float64      `json:"score"`
	Type            RelationType `json:"type"`
	CreatedAt       int64        `json:"createdAt"`
}

// IngestJob is a queued ingestion request. Delivery is at-least-once; the
// fingerprint dedup check makes re-execution safe.
type IngestJob struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"ownerId"`
	RawText   string   `json:"rawText"`
	Metadata  Metadata `json:"metadata,omitempty"`
	Status    string   `json:"status"`
	Attempts  int      `json:"attempts"`
	LastError string   `json:"lastError,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Ingest job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)
