package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recallmesh/recallmesh/internal/models"
)

// JobQueue is a durable, at-least-once ingestion queue backed by SQLite.
// Jobs left in the running state by a crashed worker are re-claimed after
// a visibility timeout, so a job may execute more than once; the
// fingerprint dedup check in the pipeline makes that safe.
type JobQueue struct {
	db *DB
	// visibility is how long a running job stays invisible before it can
	// be re-claimed.
	visibility time.Duration
}

func NewJobQueue(db *DB) *JobQueue {
	return &JobQueue{db: db, visibility: 10 * time.Minute}
}

// Enqueue persists a new pending job.
func (q *JobQueue) Enqueue(job *models.IngestJob) error {
	var metaJSON []byte
	if job.Metadata != nil {
		metaJSON, _ = json.Marshal(job.Metadata)
	}
	now := time.Now().Unix()
	_, err := q.db.Exec(`
		INSERT INTO ingest_jobs (id, owner_id, raw_text, metadata, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, job.ID, job.OwnerID, job.RawText, nullableString(metaJSON), models.JobPending, now, now)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Claim returns the oldest deliverable job, marks it running, and bumps
// its attempt counter. Returns nil when the queue is empty. Pending jobs
// and timed-out running jobs are both deliverable.
func (q *JobQueue) Claim() (*models.IngestJob, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	staleBefore := now - int64(q.visibility.Seconds())

	var job models.IngestJob
	var metaJSON, lastErr sql.NullString
	err = tx.QueryRow(`
		SELECT id, owner_id, raw_text, metadata, status, attempts, last_error, created_at, updated_at
		FROM ingest_jobs
		WHERE status = ? OR (status = ? AND updated_at < ?)
		ORDER BY created_at
		LIMIT 1
	`, models.JobPending, models.JobRunning, staleBefore).Scan(
		&job.ID, &job.OwnerID, &job.RawText, &metaJSON, &job.Status,
		&job.Attempts, &lastErr, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &job.Metadata)
	}
	job.LastError = lastErr.String

	_, err = tx.Exec(`UPDATE ingest_jobs SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		models.JobRunning, now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = models.JobRunning
	job.Attempts++
	return &job, nil
}

// Complete marks a job done.
func (q *JobQueue) Complete(jobID string) error {
	_, err := q.db.Exec(`UPDATE ingest_jobs SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		models.JobDone, time.Now().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a job failure for operator visibility.
func (q *JobQueue) Fail(jobID, reason string) error {
	_, err := q.db.Exec(`UPDATE ingest_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		models.JobFailed, reason, time.Now().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Get returns a job by ID, or nil.
func (q *JobQueue) Get(jobID string) (*models.IngestJob, error) {
	var job models.IngestJob
	var metaJSON, lastErr sql.NullString
	err := q.db.QueryRow(`
		SELECT id, owner_id, raw_text, metadata, status, attempts, last_error, created_at, updated_at
		FROM ingest_jobs WHERE id = ?
	`, jobID).Scan(
		&job.ID, &job.OwnerID, &job.RawText, &metaJSON, &job.Status,
		&job.Attempts, &lastErr, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &job.Metadata)
	}
	job.LastError = lastErr.String
	return &job, nil
}
