package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// maxPDFJobAttempts bounds retries before a job is parked as failed.
const maxPDFJobAttempts = 3

// EnqueuePDFJob records a deferred rendering task. Enqueueing the same
// revision twice is a no-op thanks to the per-sequence uniqueness.
func (s *Store) EnqueuePDFJob(ctx context.Context, job *PDFJob) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO pdf_jobs (
            revision_id, work_id, source_id, sequence, source_name,
            source_bucket, source_key, state, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (work_id, source_id, sequence) DO NOTHING`,
		job.RevisionID, job.WorkID, job.SourceID, job.Seq, job.SourceName,
		job.SourceBucket, job.SourceKey, string(PDFJobPending), now, now)
	if err != nil {
		return fmt.Errorf("enqueue pdf job: %w", err)
	}
	return nil
}

// ClaimNextPDFJob atomically claims the oldest pending job for a worker.
// Returns (nil, nil) when the queue is empty.
func (s *Store) ClaimNextPDFJob(ctx context.Context) (*PDFJob, error) {
	ctx = ensureContext(ctx)

	var job PDFJob
	var state, lastError, createdAt, updatedAt string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE pdf_jobs
             SET state = ?, attempts = attempts + 1, updated_at = ?
             WHERE id = (
                 SELECT id FROM pdf_jobs WHERE state = ? ORDER BY id LIMIT 1
             )
             RETURNING id, revision_id, work_id, source_id, sequence,
                 source_name, source_bucket, source_key, state, attempts,
                 COALESCE(last_error, ''), created_at, updated_at`,
			string(PDFJobRunning), timestamp(), string(PDFJobPending)).
			Scan(&job.ID, &job.RevisionID, &job.WorkID, &job.SourceID, &job.Seq,
				&job.SourceName, &job.SourceBucket, &job.SourceKey, &state,
				&job.Attempts, &lastError, &createdAt, &updatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pdf job: %w", err)
	}

	job.State = PDFJobState(state)
	job.LastError = lastError
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

// CompletePDFJob marks a claimed job done.
func (s *Store) CompletePDFJob(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE pdf_jobs SET state = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		string(PDFJobDone), timestamp(), id)
	if err != nil {
		return fmt.Errorf("complete pdf job: %w", err)
	}
	return nil
}

// FailPDFJob records an attempt failure. The job returns to pending until
// the attempt budget runs out, then parks as failed.
func (s *Store) FailPDFJob(ctx context.Context, id int64, cause string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE pdf_jobs
         SET state = CASE WHEN attempts >= ? THEN ? ELSE ? END,
             last_error = ?, updated_at = ?
         WHERE id = ?`,
		maxPDFJobAttempts, string(PDFJobFailed), string(PDFJobPending),
		cause, timestamp(), id)
	if err != nil {
		return fmt.Errorf("fail pdf job: %w", err)
	}
	return nil
}

// ListPDFJobs returns all jobs, newest first, for operator inspection.
func (s *Store) ListPDFJobs(ctx context.Context) ([]*PDFJob, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, revision_id, work_id, source_id, sequence, source_name,
            source_bucket, source_key, state, attempts,
            COALESCE(last_error, ''), created_at, updated_at
         FROM pdf_jobs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pdf jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*PDFJob
	for rows.Next() {
		var job PDFJob
		var state, lastError, createdAt, updatedAt string
		if err := rows.Scan(&job.ID, &job.RevisionID, &job.WorkID, &job.SourceID,
			&job.Seq, &job.SourceName, &job.SourceBucket, &job.SourceKey,
			&state, &job.Attempts, &lastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan pdf job: %w", err)
		}
		job.State = PDFJobState(state)
		job.LastError = lastError
		job.CreatedAt = parseTime(createdAt)
		job.UpdatedAt = parseTime(updatedAt)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
