package pdfjob

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"partita/internal/branch"
	"partita/internal/manifest"
	"partita/internal/objectstore"
	"partita/internal/store"
	"partita/internal/testsupport"
)

type fakeRenderer struct {
	fail  bool
	calls int
}

func (f *fakeRenderer) RenderPDF(_ context.Context, _ *manifest.Manifest, workID, sourceID string, seq int, _ string, _ []byte) (objectstore.Locator, objectstore.Locator, error) {
	f.calls++
	if f.fail {
		return objectstore.Locator{}, objectstore.Locator{}, errors.New("editor crashed")
	}
	pdf := objectstore.Locator{Bucket: objectstore.BucketDerivatives, Key: keyFor(workID, sourceID, seq, "score.pdf")}
	thumb := objectstore.Locator{Bucket: objectstore.BucketDerivatives, Key: keyFor(workID, sourceID, seq, "thumb.png")}
	return pdf, thumb, nil
}

func keyFor(workID, sourceID string, seq int, name string) string {
	return workID + "/" + sourceID + "/1/" + name
}

func newWorkerHarness(t *testing.T, renderer Renderer) (*Worker, *store.Store, objectstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t)
	objects := testsupport.MustOpenObjects(t)
	return NewWorker(cfg, st, objects, renderer, slog.New(slog.DiscardHandler)), st, objects
}

func seedJob(t *testing.T, st *store.Store, objects objectstore.Store) (*store.Revision, *store.PDFJob) {
	t.Helper()
	ctx := context.Background()

	loc, err := objects.Put(ctx, objectstore.BucketDerivatives, "work-1/src-1/1/score.musicxml",
		[]byte("<score-partwise/>"), "application/vnd.recordare.musicxml+xml")
	if err != nil {
		t.Fatal(err)
	}

	rev := &store.Revision{
		ID: uuid.NewString(), WorkID: "work-1", SourceID: "src-1", Seq: 1,
		Branch: branch.DefaultName, Filename: "score.musicxml", Format: "plain-xml",
		Status: store.StatusApproved,
	}
	rev.Derivatives.CanonicalXML = &loc
	if err := st.SaveRevision(ctx, rev); err != nil {
		t.Fatal(err)
	}

	job := &store.PDFJob{
		RevisionID: rev.ID, WorkID: "work-1", SourceID: "src-1", Seq: 1,
		SourceName: "score.musicxml", SourceBucket: string(loc.Bucket), SourceKey: loc.Key,
	}
	if err := st.EnqueuePDFJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	return rev, job
}

func TestDrainRendersAndAttaches(t *testing.T) {
	renderer := &fakeRenderer{}
	worker, st, objects := newWorkerHarness(t, renderer)
	rev, _ := seedJob(t, st, objects)
	ctx := context.Background()

	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if renderer.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", renderer.calls)
	}

	got, err := st.GetRevision(ctx, rev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Derivatives.PDF == nil || got.Derivatives.Thumbnail == nil {
		t.Errorf("deferred artifacts not attached: %+v", got.Derivatives)
	}

	jobs, err := st.ListPDFJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if jobs[0].State != store.PDFJobDone {
		t.Errorf("job state = %q, want done", jobs[0].State)
	}
}

func TestDrainFailureRequeues(t *testing.T) {
	renderer := &fakeRenderer{fail: true}
	worker, st, objects := newWorkerHarness(t, renderer)
	seedJob(t, st, objects)
	ctx := context.Background()

	if err := worker.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	jobs, err := st.ListPDFJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if jobs[0].State != store.PDFJobPending {
		t.Errorf("job state = %q, want pending for retry", jobs[0].State)
	}
	if jobs[0].LastError == "" {
		t.Error("missing last error")
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	renderer := &fakeRenderer{}
	worker, _, _ := newWorkerHarness(t, renderer)
	if err := worker.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if renderer.calls != 0 {
		t.Errorf("renderer invoked on empty queue")
	}
}
