// Package memory is the service facade tying retrieval, ingestion, and
// the relation mesh together behind one API the HTTP layer can call.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/recallmesh/recallmesh/internal/graph"
	"github.com/recallmesh/recallmesh/internal/models"
	"github.com/recallmesh/recallmesh/internal/search"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/textnorm"
)

// VectorDeleter removes a memory's vector from the index.
type VectorDeleter interface {
	Delete(ctx context.Context, memoryID string) error
}

type Service struct {
	owners    *store.OwnerStore
	memories  *store.MemoryStore
	relations *store.RelationStore
	queue     *store.JobQueue
	blender   *search.Blender
	builder   *graph.Builder
	vectors   VectorDeleter
	logger    *log.Logger
}

func NewService(
	owners *store.OwnerStore,
	memories *store.MemoryStore,
	relations *store.RelationStore,
	queue *store.JobQueue,
	blender *search.Blender,
	builder *graph.Builder,
	vectors VectorDeleter,
	logger *log.Logger,
) *Service {
	return &Service{
		owners:    owners,
		memories:  memories,
		relations: relations,
		queue:     queue,
		blender:   blender,
		builder:   builder,
		vectors:   vectors,
		logger:    logger,
	}
}

// Search runs a policy-shaped hybrid search for the owner.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("ownerId required: %w", models.ErrInvalidQuery)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query required: %w", models.ErrInvalidQuery)
	}
	ok, err := s.owners.Exists(req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("owner lookup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", req.OwnerID, models.ErrNotFound)
	}
	return s.blender.Search(ctx, req.OwnerID, req.Query, req.Policy, req.Limit)
}

// Ingest accepts a capture. Content the owner already holds is answered
// immediately with the existing memory; new content is queued for the
// worker pool.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("ownerId required: %w", models.ErrInvalidQuery)
	}
	canonical := textnorm.Canonicalize(req.RawText)
	if canonical == "" {
		return nil, fmt.Errorf("rawText required: %w", models.ErrInvalidQuery)
	}
	if err := s.owners.Ensure(req.OwnerID); err != nil {
		return nil, fmt.Errorf("ensure owner: %w", err)
	}

	fingerprint := textnorm.Fingerprint(canonical)
	existing, err := s.memories.FindByFingerprint(req.OwnerID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if existing != nil {
		s.logger.Info("ingest deduplicated at intake", "owner", req.OwnerID, "memory", existing.ID)
		return &models.IngestResponse{MemoryID: existing.ID, Deduplicated: true}, nil
	}

	job := &models.IngestJob{
		ID:       uuid.NewString(),
		OwnerID:  req.OwnerID,
		RawText:  req.RawText,
		Metadata: req.Metadata,
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return &models.IngestResponse{JobID: job.ID, Queued: true}, nil
}

// GetMemory returns a memory with its relation edges.
func (s *Service) GetMemory(ctx context.Context, memoryID string) (*models.Memory, []models.MemoryRelation, error) {
	mem, err := s.memories.GetByID(memoryID)
	if err != nil {
		return nil, nil, err
	}
	if mem == nil {
		return nil, nil, fmt.Errorf("memory %s: %w", memoryID, models.ErrNotFound)
	}
	edges, err := s.relations.ListForMemory(memoryID)
	if err != nil {
		return nil, nil, err
	}
	return mem, edges, nil
}

// DeleteMemory removes a memory, its relation edges in both directions,
// and its vector. A failed vector delete is logged, not fatal: the index
// entry points at a row that no longer exists and is filtered on read.
func (s *Service) DeleteMemory(ctx context.Context, memoryID string) error {
	mem, err := s.memories.GetByID(memoryID)
	if err != nil {
		return err
	}
	if mem == nil {
		return fmt.Errorf("memory %s: %w", memoryID, models.ErrNotFound)
	}

	if err := s.relations.DeleteForMemory(memoryID); err != nil {
		return err
	}
	if err := s.memories.Delete(memoryID); err != nil {
		return err
	}
	if s.vectors != nil {
		if err := s.vectors.Delete(ctx, memoryID); err != nil {
			s.logger.Warn("vector delete failed", "memory", memoryID, "error", err)
		}
	}
	return nil
}

// GetJob returns the status of a queued ingestion job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.IngestJob, error) {
	job, err := s.queue.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	return job, nil
}

// Link rebuilds relation edges for a memory on demand.
func (s *Service) Link(ctx context.Context, memoryID string) (*models.LinkResponse, error) {
	created, pruned, err := s.builder.Link(ctx, memoryID, nil)
	if err != nil {
		return nil, err
	}
	return &models.LinkResponse{MemoryID: memoryID, EdgesCreated: created, EdgesPruned: pruned}, nil
}

// Cleanup prunes weak and stale relation edges. An empty ownerID cleans
// all owners.
func (s *Service) Cleanup(ctx context.Context, ownerID string) (*models.CleanupResponse, error) {
	removed, err := s.builder.Cleanup(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.CleanupResponse{EdgesRemoved: removed}, nil
}

// VectorChecker probes the vector index for the health endpoint.
type VectorChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health reports the service's dependency status.
func (s *Service) Health(ctx context.Context, db *store.DB, vectors VectorChecker) *models.HealthResponse {
	resp := &models.HealthResponse{
		Status:   "ok",
		Database: models.ServiceCheck{Status: "ok"},
		Vectors:  models.ServiceCheck{Status: "ok"},
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = models.ServiceCheck{Status: "down", Message: err.Error()}
	}
	if vectors == nil {
		resp.Vectors = models.ServiceCheck{Status: "disabled"}
	} else if err := vectors.HealthCheck(ctx); err != nil {
		// Keyword search still works without the vector index.
		resp.Status = "degraded"
		resp.Vectors = models.ServiceCheck{Status: "down", Message: err.Error()}
	}
	return resp
}
