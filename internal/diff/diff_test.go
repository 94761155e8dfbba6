package diff

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"partita/internal/branch"
	"partita/internal/convert"
	"partita/internal/objectstore"
	"partita/internal/services"
	"partita/internal/store"
	"partita/internal/testsupport"
)

type fakeDiffer struct {
	text string
	err  error
}

func (f *fakeDiffer) Diff(_ context.Context, _, _, from, to, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text + " (" + from + ".." + to + " " + path + ")", nil
}

type fakeExec struct {
	err error
}

func (f *fakeExec) Run(_ context.Context, _, _ string, _ ...string) (convert.Output, error) {
	if f.err != nil {
		return convert.Output{Stderr: []byte("musicdiff unavailable")}, f.err
	}
	return convert.Output{}, nil
}

func newDiffHarness(t *testing.T, differ Differ, exec convert.Executor) (*Service, *store.Store, objectstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t)
	objects := testsupport.MustOpenObjects(t)
	return NewService(cfg, st, objects, differ, exec, slog.New(slog.DiscardHandler)), st, objects
}

func seedRevision(t *testing.T, st *store.Store, objects objectstore.Store, seq int, artifactID string) *store.Revision {
	t.Helper()
	ctx := context.Background()

	key := "work-1/src-1/" + string(rune('0'+seq)) + "/score.musicxml"
	loc, err := objects.Put(ctx, objectstore.BucketDerivatives, key, []byte("<score-partwise/>"), "application/xml")
	if err != nil {
		t.Fatal(err)
	}

	rev := &store.Revision{
		ID: uuid.NewString(), WorkID: "work-1", SourceID: "src-1", Seq: seq,
		Branch: branch.DefaultName, Filename: "score.musicxml", Format: "plain-xml",
		Status: store.StatusApproved, ArtifactID: artifactID,
	}
	rev.Derivatives.CanonicalXML = &loc
	if err := st.SaveRevision(ctx, rev); err != nil {
		t.Fatal(err)
	}
	return rev
}

func TestCompareProducesTextDiff(t *testing.T) {
	// musicdiff is unavailable; the textual diff must still come through.
	svc, st, objects := newDiffHarness(t, &fakeDiffer{text: "Index: score.musicxml"}, &fakeExec{err: errors.New("exit status 127")})
	seedRevision(t, st, objects, 1, "aaa111")
	seedRevision(t, st, objects, 2, "bbb222")
	ctx := context.Background()

	result, err := svc.Compare(ctx, "work-1", "src-1", 2, 1)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !strings.Contains(result.TextDiff, "aaa111..bbb222") {
		t.Errorf("diff order wrong: %q", result.TextDiff)
	}
	if result.PDF != nil {
		t.Error("visual diff present despite musicdiff failure")
	}

	// The report blob is cached in the aux bucket.
	cached, err := objects.Get(ctx, result.Report.Bucket, result.Report.Key)
	if err != nil {
		t.Fatalf("cached report: %v", err)
	}
	if string(cached) != result.TextDiff {
		t.Error("cached report differs from returned text")
	}
	if !strings.HasSuffix(result.Report.Key, "1-2.diff") {
		t.Errorf("report key = %q", result.Report.Key)
	}
}

func TestCompareRequiresCommittedRevisions(t *testing.T) {
	svc, st, objects := newDiffHarness(t, &fakeDiffer{}, &fakeExec{})
	seedRevision(t, st, objects, 1, "aaa111")
	seedRevision(t, st, objects, 2, "")

	_, err := svc.Compare(context.Background(), "work-1", "src-1", 1, 2)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCompareMissingRevision(t *testing.T) {
	svc, st, objects := newDiffHarness(t, &fakeDiffer{}, &fakeExec{})
	seedRevision(t, st, objects, 1, "aaa111")

	_, err := svc.Compare(context.Background(), "work-1", "src-1", 1, 9)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
