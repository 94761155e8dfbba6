package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"partita/internal/branch"
	"partita/internal/services"
)

// EnsureBranchRecord inserts a branch policy row, leaving an existing row
// untouched.
func (s *Store) EnsureBranchRecord(ctx context.Context, record branch.Record) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO branches (work_id, source_id, name, policy, owner_user_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (work_id, source_id, name) DO NOTHING`,
		record.WorkID, record.SourceID, record.Name, string(record.Policy),
		nullableString(record.OwnerUserID), timestamp())
	if err != nil {
		return fmt.Errorf("ensure branch: %w", err)
	}
	return nil
}

// SetBranchRecord inserts or replaces a branch policy row.
func (s *Store) SetBranchRecord(ctx context.Context, record branch.Record) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO branches (work_id, source_id, name, policy, owner_user_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (work_id, source_id, name)
         DO UPDATE SET policy = excluded.policy, owner_user_id = excluded.owner_user_id`,
		record.WorkID, record.SourceID, record.Name, string(record.Policy),
		nullableString(record.OwnerUserID), timestamp())
	if err != nil {
		return fmt.Errorf("set branch: %w", err)
	}
	return nil
}

// GetBranchRecord loads one branch policy row. Returns (nil, nil) when no
// explicit record exists; callers treat that as the default public policy.
func (s *Store) GetBranchRecord(ctx context.Context, workID, sourceID, name string) (*branch.Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT work_id, source_id, name, policy, COALESCE(owner_user_id, ''), created_at
         FROM branches WHERE work_id = ? AND source_id = ? AND name = ?`,
		workID, sourceID, name)

	record, err := scanBranch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return record, nil
}

// ListBranchRecords returns the explicit branch rows of one source.
func (s *Store) ListBranchRecords(ctx context.Context, workID, sourceID string) ([]*branch.Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT work_id, source_id, name, policy, COALESCE(owner_user_id, ''), created_at
         FROM branches WHERE work_id = ? AND source_id = ? ORDER BY name`,
		workID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var records []*branch.Record
	for rows.Next() {
		record, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteBranchRecord removes an explicit branch policy. The default branch
// never has a deletable policy row.
func (s *Store) DeleteBranchRecord(ctx context.Context, workID, sourceID, name string) error {
	if name == branch.DefaultName {
		return services.Wrap(services.ErrPolicy, "store", "delete-branch",
			"the default branch cannot be deleted", nil)
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM branches WHERE work_id = ? AND source_id = ? AND name = ?`,
		workID, sourceID, name)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete-branch", name, nil)
	}
	return nil
}

func scanBranch(row rowScanner) (*branch.Record, error) {
	var record branch.Record
	var policy, createdAt string
	if err := row.Scan(&record.WorkID, &record.SourceID, &record.Name, &policy,
		&record.OwnerUserID, &createdAt); err != nil {
		return nil, err
	}
	record.Policy = branch.Policy(policy)
	record.CreatedAt = parseTime(createdAt)
	return &record, nil
}
