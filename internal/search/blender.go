// Package search merges independent keyword and semantic candidate
// retrievals into one ranked result set.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/recallmesh/recallmesh/internal/models"
	"github.com/recallmesh/recallmesh/internal/policy"
	"github.com/recallmesh/recallmesh/internal/provider"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/vectorstore"
)

// Channel fusion weights applied when merging the two retrieval channels.
// These are independent of per-policy scoring, which refines the blended
// results downstream.
const (
	keywordFusionWeight  = 0.4
	semanticFusionWeight = 0.6
)

// VectorIndex is the nearest-neighbor lookup consumed by the blender.
type VectorIndex interface {
	Query(ctx context.Context, ownerID string, vector []float32, limit int, exclude []string) ([]vectorstore.Hit, error)
}

// Blender runs the keyword and semantic channels concurrently and fuses
// their candidates into one ranking.
type Blender struct {
	memories *store.MemoryStore
	embedder provider.Embedder
	index    VectorIndex
	logger   *log.Logger
}

func NewBlender(memories *store.MemoryStore, embedder provider.Embedder, index VectorIndex, logger *log.Logger) *Blender {
	return &Blender{
		memories: memories,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// candidate is the per-memory working state during the merge.
type candidate struct {
	memory     *models.Memory
	keyword    float64
	semantic   float64
	inKeyword  bool
	inSemantic bool
}

// Search runs both channels, merges by memory identity, ranks by blended
// score and paginates. A failing semantic channel degrades the query to
// keyword-only results instead of failing it.
func (b *Blender) Search(ctx context.Context, ownerID, query, policyName string, limit int) (*models.SearchResponse, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("query %q has no usable tokens: %w", query, models.ErrInvalidQuery)
	}

	p := policy.Lookup(policyName)
	if limit <= 0 || limit > p.MaxResults {
		limit = p.MaxResults
	}

	var (
		wg         sync.WaitGroup
		kwMemories []*models.Memory
		kwErr      error
		semHits    []vectorstore.Hit
		semErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		kwMemories, kwErr = b.memories.KeywordCandidates(ownerID, tokens, limit*5)
	}()
	go func() {
		defer wg.Done()
		vec, err := b.embedder.Embed(ctx, query)
		if err != nil {
			semErr = err
			return
		}
		semHits, semErr = b.index.Query(ctx, ownerID, vec, limit*3, nil)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kwErr != nil {
		return nil, fmt.Errorf("keyword channel: %w", kwErr)
	}
	if semErr != nil {
		// Degrade gracefully: keyword-only results beat a failed query.
		b.logger.Warn("semantic channel unavailable, degrading to keyword-only",
			"owner", ownerID, "error", semErr)
		semHits = nil
	}

	merged := make(map[string]*candidate)
	for _, m := range kwMemories {
		score := KeywordScore(tokens, query, m)
		if score <= 0 {
			continue
		}
		merged[m.ID] = &candidate{memory: m, keyword: score, inKeyword: true}
	}

	var missing []string
	for _, hit := range semHits {
		if c, ok := merged[hit.MemoryID]; ok {
			c.semantic = hit.Score
			c.inSemantic = true
			continue
		}
		merged[hit.MemoryID] = &candidate{semantic: hit.Score, inSemantic: true}
		missing = append(missing, hit.MemoryID)
	}
	if len(missing) > 0 {
		fetched, err := b.memories.GetByIDs(missing)
		if err != nil {
			return nil, fmt.Errorf("fetch semantic candidates: %w", err)
		}
		for _, m := range fetched {
			merged[m.ID].memory = m
		}
	}

	now := time.Now().Unix()
	results := make([]models.SearchResult, 0, len(merged))
	for _, c := range merged {
		if c.memory == nil {
			// Vector index knows an ID the store no longer holds.
			continue
		}
		// Policy filters apply before scoring and ranking.
		if !policy.Allows(p, c.memory.Category(), c.memory.CreatedAt, now) {
			continue
		}

		blended, channel := fuse(c)
		relevance := policy.Score(policy.Signals{
			Semantic:   c.semantic,
			Keyword:    c.keyword,
			Importance: c.memory.Importance,
			AgeDays:    float64(now-c.memory.CreatedAt) / 86400.0,
		}, p)

		results = append(results, models.SearchResult{
			MemoryID:     c.memory.ID,
			Title:        c.memory.Title,
			Summary:      c.memory.Summary,
			URL:          c.memory.URL,
			BlendedScore: blended,
			Relevance:    relevance,
			Channel:      channel,
			CreatedAt:    c.memory.CreatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].BlendedScore > results[j].BlendedScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	results = trimToBudget(results, p.ContextBudget)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.MemoryID
	}
	if err := b.memories.TouchAccess(ids); err != nil {
		b.logger.Warn("access tracking failed", "error", err)
	}

	return &models.SearchResponse{
		Results:       results,
		AppliedPolicy: p.Name,
		Filters: models.AppliedFilters{
			Categories:    p.AllowedCategories,
			TimeRangeDays: p.TimeRangeDays,
		},
	}, nil
}

// fuse combines channel scores with the fixed fusion weights and labels
// the result's channel.
func fuse(c *candidate) (float64, models.SearchChannel) {
	switch {
	case c.inKeyword && c.inSemantic:
		return c.keyword*keywordFusionWeight + c.semantic*semanticFusionWeight, models.ChannelHybrid
	case c.inKeyword:
		return c.keyword * keywordFusionWeight, models.ChannelKeyword
	default:
		return c.semantic, models.ChannelSemantic
	}
}

// trimToBudget drops trailing results once the accumulated summary text
// exceeds the policy's context budget. The top result always survives.
func trimToBudget(results []models.SearchResult, budget int) []models.SearchResult {
	if budget <= 0 {
		return results
	}
	used := 0
	for i, r := range results {
		used += len(r.Summary) + len(r.Title)
		if used > budget && i > 0 {
			return results[:i]
		}
	}
	return results
}
