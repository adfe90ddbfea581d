package models

// SearchChannel labels which retrieval channel produced a result.
type SearchChannel string

const (
	ChannelKeyword  SearchChannel = "keyword"
	ChannelSemantic SearchChannel = "semantic"
	ChannelHybrid   SearchChannel = "hybrid"
)

// SearchRequest is the payload for POST /search.
type SearchRequest struct {
	OwnerID string `json:"ownerId"`
	Query   string `json:"query"`
	Policy  string `json:"policy,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// SearchResult is one ranked memory in a search response.
type SearchResult struct {
	MemoryID     string        `json:"memoryId"`
	Title        string        `json:"title,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	URL          string        `json:"url,omitempty"`
	BlendedScore float64       `json:"blendedScore"`
	Relevance    float64       `json:"relevance"`
	Channel      SearchChannel `json:"channel"`
	CreatedAt    int64         `json:"createdAt"`
}

// AppliedFilters records which policy filters constrained a search.
type AppliedFilters struct {
	Categories    []string `json:"categories,omitempty"`
	TimeRangeDays int      `json:"timeRangeDays,omitempty"`
}

// SearchResponse is the envelope for POST /search.
type SearchResponse struct {
	Results       []SearchResult `json:"results"`
	AppliedPolicy string         `json:"appliedPolicy"`
	Filters       AppliedFilters `json:"filters"`
}

// IngestRequest is the payload for POST /ingest.
type IngestRequest struct {
	OwnerID  string   `json:"ownerId"`
	RawText  string   `json:"rawText"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// IngestResponse is returned from POST /ingest. When the content
// fingerprint already exists for the owner the existing memory is returned
// immediately; otherwise the capture is queued and JobID is set.
type IngestResponse struct {
	MemoryID     string `json:"memoryId,omitempty"`
	JobID        string `json:"jobId,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
	Queued       bool   `json:"queued"`
}

// LinkResponse is returned from POST /memories/{id}/link.
type LinkResponse struct {
	MemoryID     string `json:"memoryId"`
	EdgesCreated int    `json:"edgesCreated"`
	EdgesPruned  int    `json:"edgesPruned"`
}

// CleanupResponse reports a relation cleanup pass.
type CleanupResponse struct {
	EdgesRemoved int `json:"edgesRemoved"`
}

// ServiceCheck is one dependency probe in a health response.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status   string       `json:"status"`
	Database ServiceCheck `json:"database"`
	Vectors  ServiceCheck `json:"vectors"`
}
