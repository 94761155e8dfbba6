package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"partita/internal/branch"
	"partita/internal/manifest"
	"partita/internal/services"
)

const revisionColumns = `id, work_id, source_id, sequence, branch,
    COALESCE(uploader_id, ''), filename, format, status, pending,
    COALESCE(artifact_id, ''), COALESCE(parent_artifact_id, ''),
    COALESCE(derivatives_json, ''), COALESCE(manifest_key, ''), validation,
    COALESCE(approved_by, ''), COALESCE(approved_at, ''), created_at, updated_at`

// SaveRevision inserts a completed pipeline run.
func (s *Store) SaveRevision(ctx context.Context, rev *Revision) error {
	derivJSON, err := json.Marshal(rev.Derivatives)
	if err != nil {
		return fmt.Errorf("marshal derivatives: %w", err)
	}
	now := timestamp()
	if rev.Validation == "" {
		rev.Validation = ValidationUnverified
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO revisions (
            id, work_id, source_id, sequence, branch, uploader_id, filename,
            format, status, pending, artifact_id, parent_artifact_id,
            derivatives_json, manifest_key, validation, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.WorkID, rev.SourceID, rev.Seq, rev.Branch,
		nullableString(rev.UploaderID), rev.Filename, rev.Format,
		string(rev.Status), boolToInt(rev.Pending),
		nullableString(rev.ArtifactID), nullableString(rev.ParentArtifactID),
		string(derivJSON), nullableString(rev.ManifestKey),
		string(rev.Validation), now, now)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	rev.CreatedAt = parseTime(now)
	rev.UpdatedAt = rev.CreatedAt
	return nil
}

// GetRevision loads a revision by id.
func (s *Store) GetRevision(ctx context.Context, id string) (*Revision, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE id = ?`, id)
	return scanRevision(row)
}

// GetRevisionBySequence loads a revision by its per-source sequence number.
func (s *Store) GetRevisionBySequence(ctx context.Context, workID, sourceID string, seq int) (*Revision, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions
         WHERE work_id = ? AND source_id = ? AND sequence = ?`,
		workID, sourceID, seq)
	return scanRevision(row)
}

// ListRevisions returns all revisions of a source, newest first.
func (s *Store) ListRevisions(ctx context.Context, workID, sourceID string) ([]*Revision, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions
         WHERE work_id = ? AND source_id = ? ORDER BY sequence DESC`,
		workID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

// ListVisibleRevisions filters a source's revisions by the approval
// visibility rules: pending and rejected revisions are visible only to
// their uploader, the owner of the branch they target, and admins.
func (s *Store) ListVisibleRevisions(ctx context.Context, workID, sourceID string, actor branch.Actor) ([]*Revision, error) {
	revisions, err := s.ListRevisions(ctx, workID, sourceID)
	if err != nil {
		return nil, err
	}

	owners := map[string]string{}
	records, err := s.ListBranchRecords(ctx, workID, sourceID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		owners[record.Name] = record.OwnerUserID
	}

	visible := revisions[:0]
	for _, rev := range revisions {
		switch rev.Status {
		case StatusPendingApproval, StatusRejected:
			if branch.CanView(actor, rev.UploaderID, owners[rev.Branch]) {
				visible = append(visible, rev)
			}
		case StatusApproved:
			visible = append(visible, rev)
		default:
			if actor.Admin || rev.UploaderID == actor.UserID {
				visible = append(visible, rev)
			}
		}
	}
	return visible, nil
}

// UpdateRevisionArtifacts records the fossil check-in ids after a commit.
func (s *Store) UpdateRevisionArtifacts(ctx context.Context, id, artifactID, parentArtifactID string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE revisions SET artifact_id = ?, parent_artifact_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(artifactID), nullableString(parentArtifactID), timestamp(), id)
	if err != nil {
		return fmt.Errorf("update revision artifacts: %w", err)
	}
	return nil
}

// SetValidation records the reference-PDF verification outcome.
func (s *Store) SetValidation(ctx context.Context, id string, state ValidationState) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE revisions SET validation = ?, updated_at = ? WHERE id = ?`,
		string(state), timestamp(), id)
	if err != nil {
		return fmt.Errorf("set validation: %w", err)
	}
	return nil
}

// AttachDeferredArtifacts merges a deferred PDF/thumbnail pair into the
// revision's derivative bag.
func (s *Store) AttachDeferredArtifacts(ctx context.Context, id string, derivatives manifest.DerivativeArtifacts) error {
	derivJSON, err := json.Marshal(derivatives)
	if err != nil {
		return fmt.Errorf("marshal derivatives: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE revisions SET derivatives_json = ?, updated_at = ? WHERE id = ?`,
		string(derivJSON), timestamp(), id)
	if err != nil {
		return fmt.Errorf("attach deferred artifacts: %w", err)
	}
	return nil
}

// ApplyDecision moves a pending revision to approved or rejected. The
// transition is one-way and idempotent: repeating an identical decision is a
// no-op, contradicting a made decision is a policy error. Approval promotes
// the revision to the source's latest when its sequence is newer.
func (s *Store) ApplyDecision(ctx context.Context, id string, approve bool, decidedBy string) (*Revision, error) {
	rev, err := s.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}

	target := StatusRejected
	if approve {
		target = StatusApproved
	}
	if rev.Status == target {
		return rev, nil
	}
	if rev.Status.Decided() {
		return nil, services.Wrap(services.ErrPolicy, "store", "apply-decision",
			fmt.Sprintf("revision already %s", rev.Status), nil)
	}

	now := timestamp()
	_, err = s.execWithRetry(ctx,
		`UPDATE revisions SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(target), nullableString(decidedBy), now, now, id, string(StatusPendingApproval))
	if err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}

	if approve {
		if err := s.PromoteLatest(ctx, rev.WorkID, rev.SourceID, rev.ID, rev.Seq); err != nil {
			return nil, err
		}
	}
	return s.GetRevision(ctx, id)
}

// Withdraw lets the uploader retract an undecided revision.
func (s *Store) Withdraw(ctx context.Context, id string) (*Revision, error) {
	rev, err := s.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.Status == StatusWithdrawn {
		return rev, nil
	}
	if rev.Status.Decided() {
		return nil, services.Wrap(services.ErrPolicy, "store", "withdraw",
			fmt.Sprintf("revision already %s", rev.Status), nil)
	}

	now := timestamp()
	_, err = s.execWithRetry(ctx,
		`UPDATE revisions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusWithdrawn), now, id, string(StatusPendingApproval))
	if err != nil {
		return nil, fmt.Errorf("withdraw revision: %w", err)
	}
	return s.GetRevision(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (*Revision, error) {
	var rev Revision
	var status, validation, derivJSON string
	var pending int
	var approvedAt, createdAt, updatedAt string

	err := row.Scan(&rev.ID, &rev.WorkID, &rev.SourceID, &rev.Seq, &rev.Branch,
		&rev.UploaderID, &rev.Filename, &rev.Format, &status, &pending,
		&rev.ArtifactID, &rev.ParentArtifactID, &derivJSON, &rev.ManifestKey,
		&validation, &rev.ApprovedBy, &approvedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-revision", "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scan revision: %w", err)
	}

	rev.Status = Status(status)
	rev.Validation = ValidationState(validation)
	rev.Pending = pending != 0
	if derivJSON != "" {
		if err := json.Unmarshal([]byte(derivJSON), &rev.Derivatives); err != nil {
			return nil, fmt.Errorf("decode derivatives: %w", err)
		}
	}
	rev.ApprovedAt = parseTime(approvedAt)
	rev.CreatedAt = parseTime(createdAt)
	rev.UpdatedAt = parseTime(updatedAt)
	return &rev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
