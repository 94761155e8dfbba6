package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"partita/internal/branch"
	"partita/internal/config"
	"partita/internal/convert"
	"partita/internal/format"
	"partita/internal/logging"
	"partita/internal/manifest"
	"partita/internal/notifications"
	"partita/internal/objectstore"
	"partita/internal/progress"
	"partita/internal/services"
	"partita/internal/store"
	"partita/internal/vcs"
)

// Status values returned to the upload caller.
const (
	StatusAccepted = "accepted"
	StatusPending  = "pending"
)

// newerVersionMarker appears in the score editor's stderr when a project
// file was saved by a later editor release than the installed one.
const newerVersionMarker = "newer version"

// Committer is the version-control surface the orchestrator needs.
// *vcs.Manager satisfies it.
type Committer interface {
	Commit(ctx context.Context, in vcs.CommitInput) (vcs.CommitResult, error)
}

// Request is one upload entering the pipeline.
type Request struct {
	WorkID     string
	SourceID   string
	Filename   string
	MIMEType   string
	FormatHint string
	Branch     string
	Actor      branch.Actor
	Data       []byte
	// SessionID routes progress events; empty means no progress reporting.
	SessionID string
}

// Outcome is the final result returned to the upload caller.
type Outcome struct {
	Status   string
	Revision *store.Revision
	Manifest *manifest.Manifest
	Notes    []manifest.Note
}

// Service wires the pipeline stages together.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	objects  objectstore.Store
	engine   *convert.Engine
	vcs      Committer
	notifier notifications.Service
	hub      *progress.Hub
	log      *slog.Logger
}

// NewService builds the orchestrator. hub may be nil when no caller
// subscribes to progress.
func NewService(cfg *config.Config, st *store.Store, objects objectstore.Store,
	engine *convert.Engine, committer Committer, notifier notifications.Service,
	hub *progress.Hub, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		objects:  objects,
		engine:   engine,
		vcs:      committer,
		notifier: notifier,
		hub:      hub,
		log:      logging.WithComponent(logger, "ingest"),
	}
}

// Ingest runs the full pipeline for one upload.
func (s *Service) Ingest(ctx context.Context, req Request) (*Outcome, error) {
	defer s.done(req.SessionID)

	if err := s.validate(req); err != nil {
		return nil, err
	}
	s.progress(req.SessionID, "validate", "upload accepted for processing")

	tag, err := format.Resolve(req.Filename, req.MIMEType, req.FormatHint)
	if err != nil {
		return nil, err
	}

	// The policy gate runs before any storage write so a hard policy
	// rejection leaves no trace.
	branchName := branch.Normalize(req.Branch)
	record, err := s.store.GetBranchRecord(ctx, req.WorkID, req.SourceID, branchName)
	if err != nil {
		return nil, err
	}
	verdict, err := branch.Decide(record, req.Actor)
	if err != nil {
		return nil, err
	}

	if err := s.store.EnsureSource(ctx, req.WorkID, req.SourceID); err != nil {
		return nil, err
	}

	revisionID := uuid.NewString()
	rawLoc, err := s.storeRaw(ctx, req, revisionID)
	if err != nil {
		return nil, err
	}
	s.progress(req.SessionID, "store-raw", "raw upload stored")

	seq, err := s.store.NextSequence(ctx, req.WorkID, req.SourceID)
	if err != nil {
		return nil, err
	}
	log := s.log.With(
		logging.FieldWorkID, req.WorkID,
		logging.FieldSourceID, req.SourceID,
		logging.FieldRevisionID, revisionID,
		logging.FieldSequence, seq)

	s.progress(req.SessionID, "convert", "running conversion cascade")
	result, err := s.engine.Run(ctx, convert.Input{
		WorkID:   req.WorkID,
		SourceID: req.SourceID,
		Seq:      seq,
		Format:   tag,
		Filename: req.Filename,
		Data:     req.Data,
		Raw:      rawLoc,
	})
	if err != nil {
		return nil, err
	}

	if tag.IsNative() && result.Pending() {
		// MuseScore-family uploads without a recoverable document are
		// rejected outright; nothing useful can ever be built from them.
		s.deleteRaw(ctx, rawLoc)
		msg := "could not convert the project file"
		if note, ok := result.Manifest.NoteFor(convert.StepExportContainer); ok {
			if strings.Contains(strings.ToLower(note.Detail), newerVersionMarker) {
				msg = "the project file needs a newer score editor to export"
			}
		}
		return nil, services.Wrap(services.ErrValidation, "ingest", "convert", msg, nil)
	}

	m := result.Manifest
	var commitResult vcs.CommitResult
	if !result.Pending() {
		s.progress(req.SessionID, "commit", "committing revision")
		commitResult, err = s.commit(ctx, req, branchName, seq, result)
		if err != nil {
			// A failed commit downgrades the revision instead of aborting.
			log.Warn("commit failed, revision stays pending", logging.Error(err))
			m.Append("commit", manifest.OutcomeFailed, err.Error())
			m.Pending = true
		} else {
			m.Append("commit", manifest.OutcomeOK, commitResult.ArtifactID)
		}
	} else {
		m.Append("commit", manifest.OutcomeSkipped, "no canonical document")
	}

	manifestKey, err := s.storeManifest(ctx, req, seq, result)
	if err != nil {
		return nil, err
	}

	status := store.StatusApproved
	if !verdict.Approved {
		status = store.StatusPendingApproval
	}

	rev := &store.Revision{
		ID:               revisionID,
		WorkID:           req.WorkID,
		SourceID:         req.SourceID,
		Seq:              seq,
		Branch:           branchName,
		UploaderID:       req.Actor.UserID,
		Filename:         req.Filename,
		Format:           string(tag),
		Status:           status,
		Pending:          m.Pending,
		ArtifactID:       commitResult.ArtifactID,
		ParentArtifactID: commitResult.ParentID,
		Derivatives:      result.Derivatives,
		ManifestKey:      manifestKey,
	}
	if err := s.store.SaveRevision(ctx, rev); err != nil {
		return nil, err
	}
	s.progress(req.SessionID, "persist", "revision recorded")

	if result.PDFDeferred {
		job := &store.PDFJob{
			RevisionID: revisionID,
			WorkID:     req.WorkID,
			SourceID:   req.SourceID,
			Seq:        seq,
		}
		if src := pdfJobSource(result); src != nil {
			job.SourceBucket = string(src.Bucket)
			job.SourceKey = src.Key
			job.SourceName = keyBase(src.Key)
			if err := s.store.EnqueuePDFJob(ctx, job); err != nil {
				log.Warn("enqueue deferred pdf job", logging.Error(err))
			}
		}
	}

	if verdict.Approved {
		if !m.Pending {
			if err := s.store.PromoteLatest(ctx, req.WorkID, req.SourceID, revisionID, seq); err != nil {
				return nil, err
			}
		}
		if err := s.notifier.NotifyIngestCompleted(ctx, req.WorkID, req.SourceID, seq, m.Pending); err != nil {
			log.Warn("ingest notification", logging.Error(err))
		}
	} else {
		if err := s.notifier.NotifyApprovalRequested(ctx, req.WorkID, req.SourceID, branchName, verdict.OwnerUserID, revisionID); err != nil {
			log.Warn("approval notification", logging.Error(err))
		}
	}

	outcome := &Outcome{
		Status:   StatusAccepted,
		Revision: rev,
		Manifest: m,
		Notes:    m.Notes,
	}
	if m.Pending {
		outcome.Status = StatusPending
	}
	log.Info("ingest complete",
		logging.FieldBranch, branchName,
		"status", outcome.Status,
		"pending", m.Pending)
	return outcome, nil
}

func (s *Service) validate(req Request) error {
	if strings.TrimSpace(req.WorkID) == "" || strings.TrimSpace(req.SourceID) == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "work and source ids are required", nil)
	}
	for _, id := range []string{req.WorkID, req.SourceID} {
		if strings.ContainsAny(id, "/\\") {
			return services.Wrap(services.ErrValidation, "ingest", "validate", "ids must not contain path separators", nil)
		}
	}
	if len(req.Data) == 0 {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "empty upload", nil)
	}
	if int64(len(req.Data)) > s.cfg.MaxUploadBytes() {
		return services.Wrap(services.ErrPayloadTooLarge, "ingest", "validate",
			fmt.Sprintf("upload exceeds %d MiB limit", s.cfg.Ingest.MaxUploadMiB), nil)
	}
	return nil
}

func (s *Service) storeRaw(ctx context.Context, req Request, revisionID string) (objectstore.Locator, error) {
	contentType := strings.TrimSpace(req.MIMEType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("%s/%s/%s/%s", req.WorkID, req.SourceID, revisionID, safeName(req.Filename))
	return s.objects.Put(ctx, objectstore.BucketRaw, key, req.Data, contentType)
}

func (s *Service) deleteRaw(ctx context.Context, loc objectstore.Locator) {
	if err := s.objects.Delete(ctx, loc.Bucket, loc.Key); err != nil {
		s.log.Warn("delete rejected raw upload", "key", loc.Key, logging.Error(err))
	}
}

// commit writes the canonical document, the linearized form when present,
// and the manifest state into the source's repository.
func (s *Service) commit(ctx context.Context, req Request, branchName string, seq int, result *convert.Result) (vcs.CommitResult, error) {
	files := map[string][]byte{
		"score.musicxml": result.CanonicalData,
	}
	if result.Derivatives.LinearizedXML != nil {
		if data, err := s.objects.Get(ctx, result.Derivatives.LinearizedXML.Bucket, result.Derivatives.LinearizedXML.Key); err == nil {
			files["score.lmx"] = data
		}
	}

	return s.vcs.Commit(ctx, vcs.CommitInput{
		WorkID:   req.WorkID,
		SourceID: req.SourceID,
		Branch:   branchName,
		Message:  fmt.Sprintf("revision %d (%s)", seq, safeName(req.Filename)),
		Files:    files,
	})
}

// storeManifest persists the manifest blob and attaches its locator. The
// stored JSON cannot list its own entry, so the artifact entry is added to
// the in-memory manifest only after the blob is written.
func (s *Service) storeManifest(ctx context.Context, req Request, seq int, result *convert.Result) (string, error) {
	data, err := result.Manifest.Encode()
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%d/manifest.json", req.WorkID, req.SourceID, seq)
	loc, err := s.objects.Put(ctx, objectstore.BucketDerivatives, key, data, "application/json")
	if err != nil {
		return "", err
	}
	result.Derivatives.Manifest = &loc
	result.Manifest.AddArtifact(manifest.ArtifactManifest, loc)
	return key, nil
}

// pdfJobSource picks the stored blob a deferred rendering job will read:
// the native package when present, else the canonical document.
func pdfJobSource(result *convert.Result) *objectstore.Locator {
	if result.Derivatives.NativePackage != nil {
		return result.Derivatives.NativePackage
	}
	return result.Derivatives.CanonicalXML
}

func (s *Service) progress(sessionID, stage, message string) {
	if s.hub == nil || sessionID == "" {
		return
	}
	s.hub.Publish(sessionID, stage, message)
}

func (s *Service) done(sessionID string) {
	if s.hub == nil || sessionID == "" {
		return
	}
	s.hub.Done(sessionID, "pipeline finished")
}

func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" || name == "." {
		return "upload"
	}
	return name
}

func keyBase(key string) string {
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
