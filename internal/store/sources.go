package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"partita/internal/services"
)

// EnsureSource creates the source row if it does not exist yet.
func (s *Store) EnsureSource(ctx context.Context, workID, sourceID string) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO sources (work_id, source_id, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (work_id, source_id) DO NOTHING`,
		workID, sourceID, now, now)
	if err != nil {
		return fmt.Errorf("ensure source: %w", err)
	}
	return nil
}

// GetSource loads one source row.
func (s *Store) GetSource(ctx context.Context, workID, sourceID string) (*Source, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT work_id, source_id, COALESCE(latest_revision_id, ''), latest_sequence, created_at, updated_at
         FROM sources WHERE work_id = ? AND source_id = ?`,
		workID, sourceID)

	var src Source
	var createdAt, updatedAt string
	err := row.Scan(&src.WorkID, &src.SourceID, &src.LatestRevisionID, &src.LatestSequence, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-source", workID+"/"+sourceID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	return &src, nil
}

// PromoteLatest points the source at a newly approved revision, unless a
// later sequence already holds the slot.
func (s *Store) PromoteLatest(ctx context.Context, workID, sourceID, revisionID string, seq int) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE sources
         SET latest_revision_id = ?, latest_sequence = ?, updated_at = ?
         WHERE work_id = ? AND source_id = ? AND latest_sequence < ?`,
		revisionID, seq, timestamp(), workID, sourceID, seq)
	if err != nil {
		return fmt.Errorf("promote latest: %w", err)
	}
	return nil
}

// NextSequence atomically allocates the next per-source sequence number.
// The upsert keeps concurrent uploads from ever observing the same value.
func (s *Store) NextSequence(ctx context.Context, workID, sourceID string) (int, error) {
	ctx = ensureContext(ctx)
	var seq int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO sequence_counters (work_id, source_id, next)
             VALUES (?, ?, 1)
             ON CONFLICT (work_id, source_id) DO UPDATE SET next = next + 1
             RETURNING next`,
			workID, sourceID).Scan(&seq)
	})
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
