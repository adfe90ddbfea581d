// Package ingest turns queued raw text into summarized, embedded, linked
// memories. Jobs are delivered at least once; every stage is written to
// tolerate re-execution.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/recallmesh/recallmesh/internal/models"
	"github.com/recallmesh/recallmesh/internal/provider"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/textnorm"
)

// Importance is zero unless the metadata sets it explicitly.
const defaultImportance = 0.0

// VectorUpserter stores a memory's embedding in the vector index.
type VectorUpserter interface {
	Upsert(ctx context.Context, memoryID, ownerID string, vector []float32) error
}

// Linker wires a newly stored memory into the relation mesh.
type Linker interface {
	Link(ctx context.Context, memoryID string, vec []float32) (created, pruned int, err error)
}

// Result reports what a processed job produced.
type Result struct {
	MemoryID     string
	Deduplicated bool
}

// Pipeline executes a single ingestion job end to end.
type Pipeline struct {
	memories   *store.MemoryStore
	snapshots  *store.SnapshotStore
	summarizer provider.Summarizer
	embedder   provider.Embedder
	vectors    VectorUpserter
	linker     Linker
	backoff    Backoff
	logger     *log.Logger
}

func NewPipeline(
	memories *store.MemoryStore,
	snapshots *store.SnapshotStore,
	summarizer provider.Summarizer,
	embedder provider.Embedder,
	vectors VectorUpserter,
	linker Linker,
	backoff Backoff,
	logger *log.Logger,
) *Pipeline {
	return &Pipeline{
		memories:   memories,
		snapshots:  snapshots,
		summarizer: summarizer,
		embedder:   embedder,
		vectors:    vectors,
		linker:     linker,
		backoff:    backoff,
		logger:     logger,
	}
}

// Process runs one job: canonicalize, dedup by fingerprint, summarize,
// store, embed, index, and link. Re-delivery of an already processed job
// short-circuits at the fingerprint check.
func (p *Pipeline) Process(ctx context.Context, job *models.IngestJob) (*Result, error) {
	canonical := textnorm.Canonicalize(job.RawText)
	if canonical == "" {
		return nil, fmt.Errorf("job %s: empty text after canonicalization", job.ID)
	}
	fingerprint := textnorm.Fingerprint(canonical)

	existing, err := p.memories.FindByFingerprint(job.OwnerID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if existing != nil {
		return &Result{MemoryID: existing.ID, Deduplicated: true}, nil
	}

	var summary string
	err = p.retry(ctx, "summarize", func() error {
		var serr error
		summary, serr = p.summarizer.Summarize(ctx, job.RawText, job.Metadata)
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	mem := &models.Memory{
		ID:            uuid.NewString(),
		OwnerID:       job.OwnerID,
		URL:           job.Metadata.StringValue("url"),
		Title:         job.Metadata.StringValue("title"),
		Content:       job.RawText,
		Summary:       summary,
		CanonicalText: canonical,
		Fingerprint:   fingerprint,
		Importance:    importanceFrom(job.Metadata),
		Metadata:      job.Metadata,
		CreatedAt:     time.Now().Unix(),
	}

	if err := p.memories.Insert(mem); err != nil {
		if errors.Is(err, models.ErrDuplicateContent) {
			// Lost a race with a concurrent delivery of the same content.
			winner, ferr := p.memories.FindByFingerprint(job.OwnerID, fingerprint)
			if ferr == nil && winner != nil {
				return &Result{MemoryID: winner.ID, Deduplicated: true}, nil
			}
		}
		return nil, fmt.Errorf("store memory: %w", err)
	}

	vec := p.embedAndIndex(ctx, mem)

	if p.linker != nil {
		if _, _, err := p.linker.Link(ctx, mem.ID, vec); err != nil {
			// Edges can be rebuilt later; a link failure does not
			// invalidate the stored memory.
			p.logger.Warn("relation linking failed", "memory", mem.ID, "error", err)
		}
	}

	snap := &models.MemorySnapshot{
		ID:                 uuid.NewString(),
		OwnerID:            job.OwnerID,
		RawText:            job.RawText,
		Summary:            summary,
		SummaryFingerprint: textnorm.Fingerprint(textnorm.Canonicalize(summary)),
		CreatedAt:          time.Now().Unix(),
	}
	if err := p.snapshots.Insert(snap); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	return &Result{MemoryID: mem.ID}, nil
}

// embedAndIndex embeds the memory and pushes it to the vector index,
// returning the vector for the link step. Failure downgrades the memory
// to keyword-only retrieval rather than failing the job.
func (p *Pipeline) embedAndIndex(ctx context.Context, mem *models.Memory) []float32 {
	var vec []float32
	err := p.retry(ctx, "embed", func() error {
		v, eerr := p.embedder.Embed(ctx, mem.CanonicalText)
		if eerr == nil {
			vec = v
		}
		return eerr
	})
	if err != nil {
		p.logger.Warn("embedding unavailable, memory stored without vector", "memory", mem.ID, "error", err)
		return nil
	}
	if p.vectors != nil {
		if err := p.vectors.Upsert(ctx, mem.ID, mem.OwnerID, vec); err != nil {
			p.logger.Warn("vector index upsert failed", "memory", mem.ID, "error", err)
		}
	}
	return vec
}

// retry runs fn, backing off on transient provider errors until the
// attempt budget is spent. Fatal errors return immediately.
func (p *Pipeline) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !provider.Transient(err) {
			return err
		}
		if attempt >= p.backoff.MaxAttempts {
			return fmt.Errorf("%s: %d attempts exhausted: %w", op, attempt, err)
		}
		delay := p.backoff.Delay(attempt)
		p.logger.Warn("transient provider error, backing off",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func importanceFrom(meta models.Metadata) float64 {
	v, ok := meta["importance"]
	if !ok {
		return defaultImportance
	}
	f, ok := v.(float64)
	if !ok {
		return defaultImportance
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
