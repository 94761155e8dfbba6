package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"partita/internal/branch"
	"partita/internal/config"
	"partita/internal/convert"
	"partita/internal/manifest"
	"partita/internal/notifications"
	"partita/internal/objectstore"
	"partita/internal/progress"
	"partita/internal/services"
	"partita/internal/store"
	"partita/internal/testsupport"
	"partita/internal/vcs"
)

type fakeCommitter struct {
	fail   bool
	inputs []vcs.CommitInput
}

func (f *fakeCommitter) Commit(_ context.Context, in vcs.CommitInput) (vcs.CommitResult, error) {
	f.inputs = append(f.inputs, in)
	if f.fail {
		return vcs.CommitResult{}, services.Wrap(services.ErrCommit, "vcs", "commit", "scripted failure", nil)
	}
	return vcs.CommitResult{ArtifactID: fmt.Sprintf("artifact-%d", len(f.inputs))}, nil
}

type fakeExec struct {
	run func(ctx context.Context, dir, binary string, args ...string) (convert.Output, error)
}

func (f *fakeExec) Run(ctx context.Context, dir, binary string, args ...string) (convert.Output, error) {
	return f.run(ctx, dir, binary, args...)
}

// editorExec simulates the score editor and linearizer well enough for the
// cascade to complete.
func editorExec(t *testing.T) convert.Executor {
	t.Helper()
	container := testsupport.ScoreContainer(t)
	return &fakeExec{run: func(_ context.Context, _, binary string, args ...string) (convert.Output, error) {
		for i, arg := range args {
			if arg == "-o" && i+1 < len(args) && filepath.Ext(args[i+1]) == ".mxl" {
				return convert.Output{}, os.WriteFile(args[i+1], container, 0o600)
			}
		}
		if binary == "linearize" && len(args) == 2 {
			return convert.Output{}, os.WriteFile(args[1], []byte("measure:1"), 0o600)
		}
		if len(args) == 1 && args[0] == "--version" {
			return convert.Output{Stdout: []byte("4.2.0")}, nil
		}
		return convert.Output{}, errors.New("unexpected invocation")
	}}
}

func failingExec(stderr string) convert.Executor {
	return &fakeExec{run: func(_ context.Context, _, _ string, _ ...string) (convert.Output, error) {
		return convert.Output{Stderr: []byte(stderr)}, errors.New("exit status 1")
	}}
}

type testHarness struct {
	svc       *Service
	store     *store.Store
	objects   objectstore.Store
	committer *fakeCommitter
	hub       *progress.Hub
}

func newHarness(t *testing.T, exec convert.Executor, pdfMode string) *testHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPDFMode(pdfMode), testsupport.WithMaxUploadMiB(1))
	objects := testsupport.MustOpenObjects(t)
	st := testsupport.MustOpenStore(t)

	logger := slog.New(slog.DiscardHandler)
	engine := convert.NewEngine(cfg, objects, exec, logger)
	committer := &fakeCommitter{}
	hub := progress.NewHub()
	svc := NewService(cfg, st, objects, engine, committer, notifications.NewService(cfg), hub, logger)
	return &testHarness{svc: svc, store: st, objects: objects, committer: committer, hub: hub}
}

func containerRequest(t *testing.T, branchName string, actor branch.Actor) Request {
	t.Helper()
	return Request{
		WorkID:   "work-1",
		SourceID: "src-1",
		Filename: "score.mxl",
		Branch:   branchName,
		Actor:    actor,
		Data:     testsupport.ScoreContainer(t),
	}
}

func TestIngestContainerPublicBranch(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)

	outcome, err := h.svc.Ingest(context.Background(), containerRequest(t, "", branch.Actor{}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome.Status != StatusAccepted {
		t.Errorf("status = %q, want accepted", outcome.Status)
	}
	for _, artifactType := range []string{manifest.ArtifactRaw, manifest.ArtifactCanonicalXML, manifest.ArtifactManifest} {
		if !outcome.Manifest.HasArtifact(artifactType) {
			t.Errorf("manifest missing %s artifact", artifactType)
		}
	}
	if outcome.Revision.ArtifactID == "" {
		t.Error("missing commit artifact id")
	}
	if outcome.Revision.Status != store.StatusApproved {
		t.Errorf("revision status = %q", outcome.Revision.Status)
	}
	if outcome.Revision.Branch != branch.DefaultName {
		t.Errorf("branch = %q, want default", outcome.Revision.Branch)
	}

	src, err := h.store.GetSource(context.Background(), "work-1", "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.LatestRevisionID != outcome.Revision.ID {
		t.Errorf("source latest = %q, want %q", src.LatestRevisionID, outcome.Revision.ID)
	}
}

func TestIngestAnonymousGatedBranchHardFails(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	if err := h.store.EnsureBranchRecord(ctx, branch.Record{
		WorkID: "work-1", SourceID: "src-1", Name: "urtext",
		Policy: branch.PolicyOwnerApproval, OwnerUserID: "owner",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := h.svc.Ingest(ctx, containerRequest(t, "urtext", branch.Actor{}))
	if !errors.Is(err, services.ErrPolicy) {
		t.Fatalf("err = %v, want ErrPolicy", err)
	}

	revisions, err := h.store.ListRevisions(ctx, "work-1", "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(revisions) != 0 {
		t.Errorf("revision persisted after policy rejection: %+v", revisions)
	}
}

func TestIngestGatedBranchCreatesPendingApproval(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	if err := h.store.EnsureBranchRecord(ctx, branch.Record{
		WorkID: "work-1", SourceID: "src-1", Name: "urtext",
		Policy: branch.PolicyOwnerApproval, OwnerUserID: "owner",
	}); err != nil {
		t.Fatal(err)
	}

	outcome, err := h.svc.Ingest(ctx, containerRequest(t, "urtext", branch.Actor{UserID: "alice"}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome.Revision.Status != store.StatusPendingApproval {
		t.Errorf("status = %q, want pending_approval", outcome.Revision.Status)
	}

	// Visible to the owner, hidden from anonymous viewers.
	owned, err := h.store.ListVisibleRevisions(ctx, "work-1", "src-1", branch.Actor{UserID: "owner"})
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 1 {
		t.Errorf("owner sees %d revisions, want 1", len(owned))
	}
	anon, err := h.store.ListVisibleRevisions(ctx, "work-1", "src-1", branch.Actor{})
	if err != nil {
		t.Fatal(err)
	}
	if len(anon) != 0 {
		t.Errorf("anonymous sees %d revisions, want 0", len(anon))
	}

	// An approved revision must not move the latest pointer until decided.
	src, err := h.store.GetSource(ctx, "work-1", "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.LatestRevisionID != "" {
		t.Errorf("latest pointer moved before approval: %q", src.LatestRevisionID)
	}

	decided, err := h.svc.Decide(ctx, outcome.Revision.ID, true, branch.Actor{UserID: "owner"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Status != store.StatusApproved {
		t.Errorf("decided status = %q", decided.Status)
	}
	src, err = h.store.GetSource(ctx, "work-1", "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.LatestRevisionID != outcome.Revision.ID {
		t.Errorf("latest not promoted after approval")
	}
}

func TestDecideRequiresOwnerOrAdmin(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	if err := h.store.EnsureBranchRecord(ctx, branch.Record{
		WorkID: "work-1", SourceID: "src-1", Name: "urtext",
		Policy: branch.PolicyOwnerApproval, OwnerUserID: "owner",
	}); err != nil {
		t.Fatal(err)
	}
	outcome, err := h.svc.Ingest(ctx, containerRequest(t, "urtext", branch.Actor{UserID: "alice"}))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.Decide(ctx, outcome.Revision.ID, true, branch.Actor{UserID: "alice"}); !errors.Is(err, services.ErrPolicy) {
		t.Errorf("uploader decision err = %v, want ErrPolicy", err)
	}
	if _, err := h.svc.Decide(ctx, outcome.Revision.ID, true, branch.Actor{Admin: true}); err != nil {
		t.Errorf("admin decision: %v", err)
	}
}

func TestIngestCommitFailureDowngradesToPending(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	h.committer.fail = true

	outcome, err := h.svc.Ingest(context.Background(), containerRequest(t, "", branch.Actor{}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if outcome.Status != StatusPending {
		t.Errorf("status = %q, want pending", outcome.Status)
	}
	if !outcome.Revision.Pending {
		t.Error("revision not marked pending after commit failure")
	}
	if outcome.Revision.ArtifactID != "" {
		t.Errorf("artifact id = %q, want empty", outcome.Revision.ArtifactID)
	}
	// The latest pointer must not move for a pending revision.
	src, err := h.store.GetSource(context.Background(), "work-1", "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.LatestRevisionID != "" {
		t.Errorf("pending revision promoted: %q", src.LatestRevisionID)
	}
}

func TestIngestOversizePayload(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)

	req := containerRequest(t, "", branch.Actor{})
	req.Data = make([]byte, 2*1024*1024)
	_, err := h.svc.Ingest(context.Background(), req)
	if !errors.Is(err, services.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestIngestUnsupportedFormat(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)

	req := containerRequest(t, "", branch.Actor{})
	req.Filename = "notes.pdf"
	_, err := h.svc.Ingest(context.Background(), req)
	if !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestIngestNativeConversionFailureRejectsOutright(t *testing.T) {
	h := newHarness(t, failingExec("This file was saved using a newer version of MuseScore"), config.PDFModeOff)
	ctx := context.Background()

	req := containerRequest(t, "", branch.Actor{})
	req.Filename = "sonata.mscz"
	req.Data = []byte("fake project")
	_, err := h.svc.Ingest(ctx, req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if msg := err.Error(); !bytes.Contains([]byte(msg), []byte("newer score editor")) {
		t.Errorf("error %q does not mention the exporter", msg)
	}

	revisions, listErr := h.store.ListRevisions(ctx, "work-1", "src-1")
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(revisions) != 0 {
		t.Error("revision persisted for rejected native upload")
	}
}

func TestIngestAsyncEnqueuesPDFJob(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeAsync)
	ctx := context.Background()

	outcome, err := h.svc.Ingest(ctx, containerRequest(t, "", branch.Actor{}))
	if err != nil {
		t.Fatal(err)
	}
	jobs, err := h.store.ListPDFJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].RevisionID != outcome.Revision.ID || jobs[0].Seq != outcome.Revision.Seq {
		t.Errorf("job = %+v", jobs[0])
	}
}

func TestIngestSequencesIncrease(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		outcome, err := h.svc.Ingest(ctx, containerRequest(t, "", branch.Actor{}))
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Revision.Seq != want {
			t.Errorf("seq = %d, want %d", outcome.Revision.Seq, want)
		}
	}
}

func TestIngestPublishesProgress(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)

	events, cancel := h.hub.Subscribe("session-1")
	defer cancel()

	req := containerRequest(t, "", branch.Actor{})
	req.SessionID = "session-1"
	if _, err := h.svc.Ingest(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	var sawProgress, sawDone bool
	for event := range events {
		switch event.Type {
		case progress.TypeProgress:
			sawProgress = true
		case progress.TypeDone:
			sawDone = true
		}
	}
	if !sawProgress || !sawDone {
		t.Errorf("progress=%v done=%v, want both", sawProgress, sawDone)
	}
}
