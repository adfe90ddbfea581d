// Package graph maintains the similarity mesh: for each new or updated
// memory it decides which existing memories to link to, with what
// strength, and prunes weak or stale edges.
package graph

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/recallmesh/recallmesh/internal/models"
	"github.com/recallmesh/recallmesh/internal/provider"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/vectorstore"
)

// Config carries the weight constants and bounds for edge building,
// injected at construction so the linking formula stays testable.
type Config struct {
	// Channel weight constants. TemporalWeight defaults to zero: pure
	// time proximity never creates an edge on its own but still nudges
	// borderline topical scores over the threshold.
	SemanticWeight float64
	TopicalWeight  float64
	TemporalWeight float64

	// MinSimilarity discards candidate edges below this combined score.
	MinSimilarity float64
	// MaxDegree caps the outgoing edges retained per memory.
	MaxDegree int
	// MinDegree is a soft floor: when pruning would drop a node below
	// this count, the strongest sub-threshold candidates are kept
	// (best effort, only when candidates exist).
	MinDegree int

	// VerifyBelow bounds the ambiguous mid-range: candidate scores in
	// [MinSimilarity, VerifyBelow) are confirmed by the verifier before
	// persisting, when one is configured.
	VerifyBelow float64

	// Cleanup thresholds. Edges below CleanupMinScore are always
	// removed; edges older than StaleAfter go when below StaleMinScore.
	CleanupMinScore float64
	StaleAfter      time.Duration
	StaleMinScore   float64
}

// DefaultConfig returns the production linking constants.
func DefaultConfig() Config {
	return Config{
		SemanticWeight:  1.0,
		TopicalWeight:   0.8,
		TemporalWeight:  0,
		MinSimilarity:   0.35,
		MaxDegree:       8,
		MinDegree:       2,
		VerifyBelow:     0.5,
		CleanupMinScore: 0.25,
		StaleAfter:      30 * 24 * time.Hour,
		StaleMinScore:   0.45,
	}
}

// Verifier optionally confirms an ambiguous mid-range link before it is
// persisted (an AI judgment call). A nil verifier accepts everything.
type Verifier interface {
	Confirm(ctx context.Context, a, b *models.Memory, score float64) (bool, error)
}

// VectorIndex is the nearest-neighbor lookup used by the semantic channel.
type VectorIndex interface {
	Query(ctx context.Context, ownerID string, vector []float32, limit int, exclude []string) ([]vectorstore.Hit, error)
}

// Builder computes and persists relation edges.
type Builder struct {
	cfg       Config
	memories  *store.MemoryStore
	relations *store.RelationStore
	embedder  provider.Embedder
	index     VectorIndex
	verifier  Verifier
	logger    *log.Logger

	// ownerLocks serializes linking per owner: two concurrent Link calls
	// for one owner could otherwise both observe a stale edge count and
	// exceed the max-degree bound.
	mu         sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

func NewBuilder(
	cfg Config,
	memories *store.MemoryStore,
	relations *store.RelationStore,
	embedder provider.Embedder,
	index VectorIndex,
	verifier Verifier,
	logger *log.Logger,
) *Builder {
	return &Builder{
		cfg:        cfg,
		memories:   memories,
		relations:  relations,
		embedder:   embedder,
		index:      index,
		verifier:   verifier,
		logger:     logger,
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

func (b *Builder) ownerLock(ownerID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.ownerLocks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		b.ownerLocks[ownerID] = l
	}
	return l
}

// edgeCandidate is a scored potential link during Link.
type edgeCandidate struct {
	target *models.Memory
	score  float64
	typ    models.RelationType
}

// Link recomputes the edges for a memory. Idempotent: re-running replaces
// the memory's edges rather than duplicating them. vec is the memory's
// embedding when the caller already has it; nil re-embeds the canonical
// text.
func (b *Builder) Link(ctx context.Context, memoryID string, vec []float32) (created, pruned int, err error) {
	mem, err := b.memories.GetByID(memoryID)
	if err != nil {
		return 0, 0, fmt.Errorf("load memory: %w", err)
	}
	if mem == nil {
		return 0, 0, fmt.Errorf("memory %s: %w", memoryID, models.ErrNotFound)
	}

	lock := b.ownerLock(mem.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	others, err := b.memories.ListByOwner(mem.OwnerID)
	if err != nil {
		return 0, 0, fmt.Errorf("list owner memories: %w", err)
	}

	semantic, err := b.semanticScores(ctx, mem, vec)
	if err != nil {
		// The mesh can still be built from metadata and time proximity.
		b.logger.Warn("semantic link channel unavailable", "memory", memoryID, "error", err)
		semantic = nil
	}

	var candidates []edgeCandidate
	for _, other := range others {
		if other.ID == mem.ID {
			continue
		}
		if other.OwnerID != mem.OwnerID {
			return 0, 0, fmt.Errorf("candidate %s owned by %s: %w", other.ID, other.OwnerID, models.ErrGraphConsistency)
		}

		semScore := semantic[other.ID] * b.cfg.SemanticWeight
		topScore := topicalScore(mem, other) * b.cfg.TopicalWeight
		tmpScore := temporalScore(mem.CreatedAt, other.CreatedAt) * b.cfg.TemporalWeight

		score, typ := dominantChannel(semScore, topScore+tmpScore, tmpScore)
		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		candidates = append(candidates, edgeCandidate{target: other, score: score, typ: typ})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var accepted []edgeCandidate
	for _, c := range candidates {
		if len(accepted) >= b.cfg.MaxDegree {
			break
		}
		if c.score < b.cfg.MinSimilarity {
			// Soft floor: keep the strongest sub-threshold candidates
			// rather than leaving the node isolated.
			if len(accepted) >= b.cfg.MinDegree {
				break
			}
			accepted = append(accepted, c)
			continue
		}
		if b.verifier != nil && c.score < b.cfg.VerifyBelow {
			ok, verr := b.verifier.Confirm(ctx, mem, c.target, c.score)
			if verr != nil {
				b.logger.Warn("link verification failed, keeping candidate", "error", verr)
			} else if !ok {
				continue
			}
		}
		accepted = append(accepted, c)
	}

	now := time.Now().Unix()
	edges := make([]models.MemoryRelation, 0, len(accepted))
	for _, c := range accepted {
		edges = append(edges, models.MemoryRelation{
			MemoryID:        mem.ID,
			RelatedMemoryID: c.target.ID,
			Score:           c.score,
			Type:            c.typ,
			CreatedAt:       now,
		})
	}

	if err := b.relations.ReplaceForMemory(mem.ID, edges); err != nil {
		return 0, 0, err
	}

	// Mirror each edge so the mesh reads the same from both endpoints,
	// then re-enforce the degree bound on every touched target.
	for _, e := range edges {
		reverse := models.MemoryRelation{
			MemoryID:        e.RelatedMemoryID,
			RelatedMemoryID: e.MemoryID,
			Score:           e.Score,
			Type:            e.Type,
			CreatedAt:       now,
		}
		if err := b.relations.Upsert(reverse); err != nil {
			return 0, 0, err
		}
		n, err := b.relations.PruneToDegree(e.RelatedMemoryID, b.cfg.MaxDegree)
		if err != nil {
			return 0, 0, err
		}
		pruned += n
	}

	// Drop mirrors of edges the relink no longer produces; an edge must
	// exist in both directions or neither.
	keep := make([]string, 0, len(edges))
	for _, e := range edges {
		keep = append(keep, e.RelatedMemoryID)
	}
	n, err := b.relations.DeleteOrphanMirrors(mem.ID, keep)
	if err != nil {
		return 0, 0, err
	}
	pruned += n

	return len(edges), pruned, nil
}

// semanticScores queries the vector index for the memory's neighbors.
func (b *Builder) semanticScores(ctx context.Context, mem *models.Memory, vec []float32) (map[string]float64, error) {
	if vec == nil {
		v, err := b.embedder.Embed(ctx, mem.CanonicalText)
		if err != nil {
			return nil, fmt.Errorf("embed for linking: %w", err)
		}
		vec = v
	}

	hits, err := b.index.Query(ctx, mem.OwnerID, vec, b.cfg.MaxDegree*4, []string{mem.ID})
	if err != nil {
		return nil, fmt.Errorf("semantic candidates: %w", err)
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.MemoryID] = h.Score
	}
	return scores, nil
}

// dominantChannel picks the strongest channel as the edge's score and type.
func dominantChannel(semantic, topical, temporal float64) (float64, models.RelationType) {
	score, typ := semantic, models.RelationSemantic
	if topical > score {
		score, typ = topical, models.RelationTopical
	}
	if temporal > score {
		score, typ = temporal, models.RelationTemporal
	}
	return score, typ
}

// topicalScore measures metadata overlap between two memories: Jaccard
// overlap of their topic sets plus a boost when both came from the same
// site.
func topicalScore(a, b *models.Memory) float64 {
	score := jaccard(a.Topics(), b.Topics())
	if sameDomain(a.URL, b.URL) {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for k := range setA {
		union[k] = true
	}
	for _, v := range b {
		union[v] = true
		if setA[v] {
			intersection++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func sameDomain(rawA, rawB string) bool {
	if rawA == "" || rawB == "" {
		return false
	}
	ua, errA := url.Parse(rawA)
	ub, errB := url.Parse(rawB)
	if errA != nil || errB != nil {
		return false
	}
	return ua.Hostname() != "" && ua.Hostname() == ub.Hostname()
}

// temporalScore buckets capture-time proximity into same-hour, same-day
// and same-week bands.
func temporalScore(a, b int64) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 3600:
		return 1.0
	case diff <= 86400:
		return 0.6
	case diff <= 7*86400:
		return 0.3
	}
	return 0
}
