package ingest

import (
	"context"

	"partita/internal/branch"
	"partita/internal/logging"
	"partita/internal/services"
	"partita/internal/store"
)

// Decide applies an approve or reject decision to a gated revision. Only
// the branch owner or an admin may decide; repeating an identical decision
// is a no-op.
func (s *Service) Decide(ctx context.Context, revisionID string, approve bool, actor branch.Actor) (*store.Revision, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetBranchRecord(ctx, rev.WorkID, rev.SourceID, rev.Branch)
	if err != nil {
		return nil, err
	}
	var owner string
	if record != nil {
		owner = record.OwnerUserID
	}
	if !branch.CanDecideApproval(actor, owner) {
		return nil, services.Wrap(services.ErrPolicy, "ingest", "decide",
			"only the branch owner or an admin may decide approvals", nil)
	}

	decided, err := s.store.ApplyDecision(ctx, revisionID, approve, actor.UserID)
	if err != nil {
		return nil, err
	}

	if approve && decided.Status == store.StatusApproved {
		if err := s.notifier.NotifyRevisionApproved(ctx, rev.WorkID, rev.SourceID, revisionID, actor.UserID); err != nil {
			s.log.Warn("approval notification", logging.Error(err))
		}
	}
	return decided, nil
}

// Withdraw lets the uploader (or an admin) retract an undecided revision.
func (s *Service) Withdraw(ctx context.Context, revisionID string, actor branch.Actor) (*store.Revision, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && (actor.UserID == "" || actor.UserID != rev.UploaderID) {
		return nil, services.Wrap(services.ErrPolicy, "ingest", "withdraw",
			"only the uploader may withdraw a revision", nil)
	}
	return s.store.Withdraw(ctx, revisionID)
}
