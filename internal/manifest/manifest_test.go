package manifest_test

import (
	"testing"

	"partita/internal/manifest"
	"partita/internal/objectstore"
)

func TestNotesAreAppendOnly(t *testing.T) {
	m := manifest.New("w1", "s1", 3)
	m.Append("export", manifest.OutcomeOK, "mscore")
	m.Append("pdf", manifest.OutcomeFailed, "exit status 1")

	if len(m.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(m.Notes))
	}
	if m.Notes[0].Step != "export" || m.Notes[1].Step != "pdf" {
		t.Fatalf("notes out of order: %v", m.Notes)
	}
	last := m.LastNote()
	if last.Outcome != manifest.OutcomeFailed || last.Detail != "exit status 1" {
		t.Fatalf("unexpected last note %+v", last)
	}
}

func TestNoteForFindsStepBehindLaterNotes(t *testing.T) {
	m := manifest.New("w1", "s1", 1)
	m.Append("export", manifest.OutcomeFailed, "saved with a newer version")
	m.Append("pdf", manifest.OutcomeSkipped, "disabled")

	note, ok := m.NoteFor("export")
	if !ok || note.Detail != "saved with a newer version" {
		t.Fatalf("NoteFor(export) = %+v, %v", note, ok)
	}
	if _, ok := m.NoteFor("linearize"); ok {
		t.Fatal("NoteFor should miss steps that never ran")
	}

	m.Append("export", manifest.OutcomeOK, "retry")
	if note, _ := m.NoteFor("export"); note.Outcome != manifest.OutcomeOK {
		t.Fatalf("expected the latest export note, got %+v", note)
	}
}

func TestNoteString(t *testing.T) {
	note := manifest.Note{Step: "thumbnail", Outcome: manifest.OutcomeSkipped}
	if got := note.String(); got != "thumbnail: skipped" {
		t.Fatalf("unexpected rendering %q", got)
	}
	note.Detail = "mode off"
	if got := note.String(); got != "thumbnail: skipped: mode off" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := manifest.New("w1", "s1", 1)
	m.Append("extract", manifest.OutcomeOK, "score.musicxml")
	m.AddArtifact(manifest.ArtifactCanonicalXML, objectstore.Locator{
		Bucket:      objectstore.BucketDerivatives,
		Key:         "w1/s1/1/canonical.musicxml",
		SizeBytes:   200,
		ContentType: "application/vnd.recordare.musicxml+xml",
		Checksum:    objectstore.Checksum{Algorithm: "sha256", HexDigest: "ab"},
	})
	m.Pending = false

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := manifest.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Version != manifest.Version || decoded.SequenceNumber != 1 {
		t.Fatalf("unexpected decoded manifest %+v", decoded)
	}
	if len(decoded.Notes) != 1 || decoded.Notes[0].Step != "extract" {
		t.Fatalf("notes lost in round trip: %+v", decoded.Notes)
	}
	if !decoded.HasArtifact(manifest.ArtifactCanonicalXML) {
		t.Fatal("canonicalXml artifact lost in round trip")
	}
	if decoded.HasArtifact(manifest.ArtifactPDF) {
		t.Fatal("unexpected pdf artifact")
	}
}

func TestAttachDeferredPDF(t *testing.T) {
	var derivatives manifest.DerivativeArtifacts
	pdf := &objectstore.Locator{Bucket: objectstore.BucketDerivatives, Key: "w/s/1/score.pdf"}
	thumb := &objectstore.Locator{Bucket: objectstore.BucketDerivatives, Key: "w/s/1/thumb.png"}

	derivatives.AttachDeferredPDF(pdf, thumb)
	if derivatives.PDF != pdf || derivatives.Thumbnail != thumb {
		t.Fatalf("deferred attachment failed: %+v", derivatives)
	}
}
