package ingest

import (
	"context"
	"testing"

	"partita/internal/branch"
	"partita/internal/config"
	"partita/internal/fileutil"
	"partita/internal/imslp"
	"partita/internal/store"
)

type fakeResolver struct {
	files []imslp.ReferenceFile
	err   error
}

func (f *fakeResolver) ReferenceFiles(_ context.Context, _ string) ([]imslp.ReferenceFile, error) {
	return f.files, f.err
}

func TestVerifyReferenceMatch(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	req := containerRequest(t, "", branch.Actor{})
	outcome, err := h.svc.Ingest(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	resolver := &fakeResolver{files: []imslp.ReferenceFile{
		{Title: "File:Sonata.pdf", SHA1: fileutil.SHA1Hex(req.Data)},
	}}
	state, err := h.svc.VerifyReference(ctx, outcome.Revision.ID, "Sonata (Composer)", resolver)
	if err != nil {
		t.Fatalf("VerifyReference: %v", err)
	}
	if state != store.ValidationVerified {
		t.Errorf("state = %q, want verified", state)
	}

	rev, err := h.store.GetRevision(ctx, outcome.Revision.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rev.Validation != store.ValidationVerified {
		t.Errorf("persisted validation = %q", rev.Validation)
	}
}

func TestVerifyReferenceMismatch(t *testing.T) {
	h := newHarness(t, editorExec(t), config.PDFModeOff)
	ctx := context.Background()

	outcome, err := h.svc.Ingest(ctx, containerRequest(t, "", branch.Actor{}))
	if err != nil {
		t.Fatal(err)
	}

	resolver := &fakeResolver{files: []imslp.ReferenceFile{{Title: "File:Other.pdf", SHA1: "feedface"}}}
	state, err := h.svc.VerifyReference(ctx, outcome.Revision.ID, "Sonata (Composer)", resolver)
	if err != nil {
		t.Fatalf("VerifyReference: %v", err)
	}
	if state != store.ValidationMismatch {
		t.Errorf("state = %q, want mismatch", state)
	}
}
