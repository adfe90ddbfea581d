package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/recallmesh/recallmesh/internal/store"
)

// maxDeliveries bounds how many times a crashed or poisoned job is
// redelivered before it is parked as failed. In-process transient retries
// are handled by the pipeline's backoff, not this counter.
const maxDeliveries = 3

const defaultPollInterval = 2 * time.Second

// Pool drains the job queue with a fixed number of workers. A worker
// holds its slot for a job's whole lifetime, backoff waits included, so
// concurrency against the providers stays bounded.
type Pool struct {
	queue    *store.JobQueue
	pipeline *Pipeline
	workers  int
	poll     time.Duration
	logger   *log.Logger
}

func NewPool(queue *store.JobQueue, pipeline *Pipeline, workers int, logger *log.Logger) *Pool {
	if workers < 1 {
		workers = 2
	}
	return &Pool{
		queue:    queue,
		pipeline: pipeline,
		workers:  workers,
		poll:     defaultPollInterval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, processing jobs as they arrive.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := p.ProcessNext(ctx)
		if err != nil {
			p.logger.Error("worker iteration failed", "worker", id, "error", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.poll):
		}
	}
}

// ProcessNext claims and runs a single job. It returns false when the
// queue is empty or the context is done. Job-level failures are recorded
// on the job, not returned; the error return covers queue access
// problems only.
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	// A canceled worker must not drain the backlog into failures.
	if ctx.Err() != nil {
		return false, nil
	}

	job, err := p.queue.Claim()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if job.Attempts > maxDeliveries {
		p.logger.Error("job exceeded delivery budget", "job", job.ID, "attempts", job.Attempts)
		return true, p.queue.Fail(job.ID, "delivery budget exhausted")
	}

	result, err := p.pipeline.Process(ctx, job)
	if err != nil {
		// Shutdown mid-job is not a job failure. Leave it running; the
		// visibility timeout redelivers it to the next worker.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Info("job interrupted, leaving for redelivery", "job", job.ID, "attempt", job.Attempts)
			return true, nil
		}
		p.logger.Error("ingest job failed", "job", job.ID, "attempt", job.Attempts, "error", err)
		return true, p.queue.Fail(job.ID, err.Error())
	}

	if result.Deduplicated {
		p.logger.Info("ingest job deduplicated", "job", job.ID, "memory", result.MemoryID)
	} else {
		p.logger.Info("ingest job completed", "job", job.ID, "memory", result.MemoryID)
	}
	return true, p.queue.Complete(job.ID)
}
