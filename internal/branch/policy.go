package branch

import (
	"strings"
	"time"

	"partita/internal/services"
)

// Policy controls how new revisions on a branch become visible.
type Policy string

const (
	// PolicyPublic approves every new revision immediately.
	PolicyPublic Policy = "public"
	// PolicyOwnerApproval holds new revisions for the branch owner.
	PolicyOwnerApproval Policy = "owner_approval"
)

// Record is one explicit branch row for a (work, source).
type Record struct {
	WorkID      string
	SourceID    string
	Name        string
	Policy      Policy
	OwnerUserID string
	CreatedAt   time.Time
}

// Actor identifies the caller of a gated operation. A zero Actor is
// anonymous.
type Actor struct {
	UserID string
	Admin  bool
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.UserID) == "" && !a.Admin
}

// Verdict is the gate's decision for one submission.
type Verdict struct {
	Approved    bool
	OwnerUserID string
}

// Decide evaluates the branch policy for a submission. record may be nil,
// meaning no explicit branch record exists and the default public policy
// applies. An anonymous actor submitting to an owner-approval branch is a
// hard policy error; no revision may be persisted after it.
func Decide(record *Record, actor Actor) (Verdict, error) {
	if record == nil || record.Policy == PolicyPublic {
		return Verdict{Approved: true}, nil
	}
	if record.Policy != PolicyOwnerApproval {
		return Verdict{}, services.Wrap(services.ErrConfiguration, "branch", "decide",
			"unknown policy "+string(record.Policy), nil)
	}
	if actor.Anonymous() {
		return Verdict{}, services.Wrap(services.ErrPolicy, "branch", "decide",
			"branch "+record.Name+" requires an authenticated submitter", nil)
	}
	return Verdict{Approved: false, OwnerUserID: record.OwnerUserID}, nil
}

// CanDecideApproval reports whether the actor may approve or reject a
// revision owned by ownerUserID.
func CanDecideApproval(actor Actor, ownerUserID string) bool {
	if actor.Admin {
		return true
	}
	return actor.UserID != "" && actor.UserID == ownerUserID
}

// CanView reports whether the actor may see a non-approved revision
// submitted by uploaderID on a branch owned by ownerUserID.
func CanView(actor Actor, uploaderID, ownerUserID string) bool {
	if actor.Admin {
		return true
	}
	if actor.UserID == "" {
		return false
	}
	return actor.UserID == uploaderID || actor.UserID == ownerUserID
}
