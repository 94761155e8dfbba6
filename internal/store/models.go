package store

import (
	"time"

	"partita/internal/manifest"
)

// Status is the approval state of a revision.
type Status string

const (
	// StatusApproved means the revision is visible to everyone and eligible
	// to become the source's latest.
	StatusApproved Status = "approved"
	// StatusPendingApproval means the revision awaits the branch owner's
	// decision.
	StatusPendingApproval Status = "pending_approval"
	// StatusRejected means the branch owner declined the revision.
	StatusRejected Status = "rejected"
	// StatusWithdrawn means the uploader retracted the revision.
	StatusWithdrawn Status = "withdrawn"
)

// Decided reports whether the approval gate has run its course.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

// ValidationState tracks reference-PDF verification against a hosted
// catalogue entry.
type ValidationState string

const (
	ValidationUnverified ValidationState = "unverified"
	ValidationVerified   ValidationState = "verified"
	ValidationMismatch   ValidationState = "mismatch"
)

// Source is one (work, source) pair with its promoted latest revision.
type Source struct {
	WorkID           string
	SourceID         string
	LatestRevisionID string
	LatestSequence   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Revision is the durable record of one ingestion attempt.
type Revision struct {
	ID               string
	WorkID           string
	SourceID         string
	Seq              int
	Branch           string
	UploaderID       string
	Filename         string
	Format           string
	Status           Status
	Pending          bool
	ArtifactID       string
	ParentArtifactID string
	Derivatives      manifest.DerivativeArtifacts
	ManifestKey      string
	Validation       ValidationState
	ApprovedBy       string
	ApprovedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PDFJobState tracks a deferred rendering job through its lifecycle.
type PDFJobState string

const (
	PDFJobPending PDFJobState = "pending"
	PDFJobRunning PDFJobState = "running"
	PDFJobDone    PDFJobState = "done"
	PDFJobFailed  PDFJobState = "failed"
)

// PDFJob is one deferred PDF/thumbnail rendering task.
type PDFJob struct {
	ID           int64
	RevisionID   string
	WorkID       string
	SourceID     string
	Seq          int
	SourceName   string
	SourceBucket string
	SourceKey    string
	State        PDFJobState
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
