package convert

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"partita/internal/config"
	"partita/internal/format"
	"partita/internal/manifest"
	"partita/internal/objectstore"
	"partita/internal/services"
	"partita/internal/testsupport"
)

type fakeExec struct {
	run func(ctx context.Context, dir, binary string, args ...string) (Output, error)
}

func (f *fakeExec) Run(ctx context.Context, dir, binary string, args ...string) (Output, error) {
	return f.run(ctx, dir, binary, args...)
}

func TestRunnerFallsBackInOrder(t *testing.T) {
	var attempts []string
	exec := &fakeExec{run: func(_ context.Context, _, binary string, _ ...string) (Output, error) {
		attempts = append(attempts, binary)
		if binary == "mscore" {
			return Output{Stderr: []byte("cannot connect to display")}, errors.New("exit status 1")
		}
		return Output{Stdout: []byte("ok")}, nil
	}}

	runner := NewRunner("score-editor", []string{"mscore", "musescore4"}, time.Minute, exec)
	result, err := runner.Run(context.Background(), t.TempDir(), func(string) []string { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Binary != "musescore4" {
		t.Errorf("Binary = %q, want musescore4", result.Binary)
	}
	if len(attempts) != 2 || attempts[0] != "mscore" {
		t.Errorf("attempts = %v, want [mscore musescore4]", attempts)
	}
}

func TestRunnerAllCandidatesFail(t *testing.T) {
	exec := &fakeExec{run: func(_ context.Context, _, _ string, _ ...string) (Output, error) {
		return Output{Stderr: []byte("boom")}, errors.New("exit status 2")
	}}

	runner := NewRunner("score-editor", []string{"a", "b"}, time.Minute, exec)
	_, err := runner.Run(context.Background(), t.TempDir(), func(string) []string { return nil })
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
}

func TestRunnerClassifiesTimeout(t *testing.T) {
	exec := &fakeExec{run: func(ctx context.Context, _, _ string, _ ...string) (Output, error) {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}}

	runner := NewRunner("score-editor", []string{"mscore"}, 10*time.Millisecond, exec)
	_, err := runner.Run(context.Background(), t.TempDir(), func(string) []string { return nil })
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRunnerNoCandidates(t *testing.T) {
	runner := NewRunner("linearizer", nil, time.Minute, &fakeExec{})
	_, err := runner.Run(context.Background(), t.TempDir(), func(string) []string { return nil })
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestExtractCanonicalUsesContainerMetadata(t *testing.T) {
	data := testsupport.BuildContainer(t, map[string]string{
		"META-INF/container.xml": testsupport.ContainerXML,
		"score.musicxml":         "<score-partwise/>",
		"other.xml":              "<bigger>xxxxxxxxxxxxxxxxxxxxxxxxxxxx</bigger>",
	})

	name, contents, err := ExtractCanonical(data)
	if err != nil {
		t.Fatalf("ExtractCanonical: %v", err)
	}
	if name != "score.musicxml" {
		t.Errorf("name = %q, want score.musicxml", name)
	}
	if string(contents) != "<score-partwise/>" {
		t.Errorf("contents = %q", contents)
	}
}

func TestExtractCanonicalFallsBackToLargestEntry(t *testing.T) {
	data := testsupport.BuildContainer(t, map[string]string{
		"META-INF/huge.xml": "<ignored>xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx</ignored>",
		"small.xml":         "<a/>",
		"large.musicxml":    "<score-partwise>more content here</score-partwise>",
	})

	name, _, err := ExtractCanonical(data)
	if err != nil {
		t.Fatalf("ExtractCanonical: %v", err)
	}
	if name != "large.musicxml" {
		t.Errorf("name = %q, want large.musicxml", name)
	}
}

func TestExtractCanonicalDanglingRootfile(t *testing.T) {
	data := testsupport.BuildContainer(t, map[string]string{
		"META-INF/container.xml": testsupport.ContainerXML,
		"actual.xml":             "<score-partwise/>",
	})

	name, _, err := ExtractCanonical(data)
	if err != nil {
		t.Fatalf("ExtractCanonical: %v", err)
	}
	if name != "actual.xml" {
		t.Errorf("name = %q, want actual.xml", name)
	}
}

func TestExtractCanonicalNoDocument(t *testing.T) {
	data := testsupport.BuildContainer(t, map[string]string{"notes.txt": "nothing here"})
	_, _, err := ExtractCanonical(data)
	if !errors.Is(err, services.ErrNoCanonicalDocument) {
		t.Fatalf("err = %v, want ErrNoCanonicalDocument", err)
	}
}

func TestExtractCanonicalNotAZip(t *testing.T) {
	_, _, err := ExtractCanonical([]byte("plain text"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func newTestEngine(t *testing.T, exec Executor, pdfMode string) (*Engine, objectstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPDFMode(pdfMode))
	store := testsupport.MustOpenObjects(t)
	logger := slog.New(slog.DiscardHandler)
	return NewEngine(cfg, store, exec, logger), store
}

// editorExec fakes the score editor: any invocation with "-o <out>" writes
// a real container to out so downstream extraction works.
func editorExec(t *testing.T) Executor {
	t.Helper()
	container := testsupport.BuildContainer(t, map[string]string{
		"META-INF/container.xml": testsupport.ContainerXML,
		"score.musicxml":         "<score-partwise/>",
	})
	return &fakeExec{run: func(_ context.Context, _, binary string, args ...string) (Output, error) {
		for i, arg := range args {
			if arg == "-o" && i+1 < len(args) {
				out := args[i+1]
				if filepath.Ext(out) == ".mxl" {
					if err := os.WriteFile(out, container, 0o600); err != nil {
						return Output{}, err
					}
					return Output{}, nil
				}
			}
		}
		if binary == "linearize" && len(args) == 2 {
			if err := os.WriteFile(args[1], []byte("measure:1 note:C4"), 0o600); err != nil {
				return Output{}, err
			}
			return Output{}, nil
		}
		if len(args) == 1 && args[0] == "--version" {
			return Output{Stdout: []byte("4.2.0\n")}, nil
		}
		return Output{}, errors.New("unexpected invocation")
	}}
}

func TestEngineNativePackageCascade(t *testing.T) {
	engine, _ := newTestEngine(t, editorExec(t), config.PDFModeOff)

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      3,
		Format:   format.NativePackage,
		Filename: "sonata.mscz",
		Data:     []byte("fake mscz payload"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pending() {
		t.Error("revision pending, want canonical document")
	}
	if result.Derivatives.NativePackage == nil {
		t.Error("missing native package artifact")
	}
	if result.Derivatives.NormalizedContainer == nil {
		t.Error("missing normalized container artifact")
	}
	if result.Derivatives.CanonicalXML == nil {
		t.Error("missing canonical artifact")
	}
	if result.Derivatives.LinearizedXML == nil {
		t.Error("missing linearized artifact")
	}
	if !result.Manifest.HasArtifact(manifest.ArtifactCanonicalXML) {
		t.Error("manifest missing canonical entry")
	}
	if result.Manifest.LastNote().Step != StepPDF || result.Manifest.LastNote().Outcome != manifest.OutcomeSkipped {
		t.Errorf("last note = %+v, want skipped pdf", result.Manifest.LastNote())
	}
}

func TestEngineNativeEditorFailureIsPending(t *testing.T) {
	failing := &fakeExec{run: func(_ context.Context, _, _ string, _ ...string) (Output, error) {
		return Output{Stderr: []byte("crash")}, errors.New("exit status 1")
	}}
	engine, _ := newTestEngine(t, failing, config.PDFModeOff)

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      1,
		Format:   format.NativeSource,
		Filename: "sonata.mscx",
		Data:     []byte("<museScore/>"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Pending() {
		t.Error("want pending after editor failure")
	}
	if !result.Manifest.Pending {
		t.Error("manifest not marked pending")
	}
	found := false
	for _, note := range result.Manifest.Notes {
		if note.Step == StepExportContainer && note.Outcome == manifest.OutcomeFailed {
			found = true
		}
	}
	if !found {
		t.Errorf("no failed export-container note in %v", result.Manifest.Notes)
	}
}

func TestEnginePlainXMLReverseFailureStaysReady(t *testing.T) {
	failing := &fakeExec{run: func(_ context.Context, _, _ string, _ ...string) (Output, error) {
		return Output{}, errors.New("exit status 1")
	}}
	engine, _ := newTestEngine(t, failing, config.PDFModeOff)

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      1,
		Format:   format.PlainXML,
		Filename: "score.musicxml",
		Data:     []byte("<score-partwise/>"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pending() {
		t.Error("plain xml upload must never be pending on reverse failure")
	}
	if result.Derivatives.CanonicalXML == nil {
		t.Error("missing canonical artifact")
	}
	if result.Derivatives.NormalizedContainer != nil {
		t.Error("unexpected container artifact after editor failure")
	}
}

func TestEngineContainerExtraction(t *testing.T) {
	engine, _ := newTestEngine(t, editorExec(t), config.PDFModeOff)
	data := testsupport.BuildContainer(t, map[string]string{
		"META-INF/container.xml": testsupport.ContainerXML,
		"score.musicxml":         "<score-partwise/>",
	})

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      2,
		Format:   format.CompressedContainer,
		Filename: "score.mxl",
		Data:     data,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pending() {
		t.Error("want canonical extracted from container")
	}
	if result.CanonicalName != "score.musicxml" {
		t.Errorf("CanonicalName = %q", result.CanonicalName)
	}
}

func TestEngineCorruptContainerIsPending(t *testing.T) {
	engine, _ := newTestEngine(t, editorExec(t), config.PDFModeOff)

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      1,
		Format:   format.CompressedContainer,
		Filename: "broken.mxl",
		Data:     []byte("not a zip"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Pending() {
		t.Error("corrupt container must leave the revision pending")
	}
}

func TestEngineAsyncPDFDefers(t *testing.T) {
	engine, _ := newTestEngine(t, editorExec(t), config.PDFModeAsync)

	result, err := engine.Run(context.Background(), Input{
		WorkID:   "work-1",
		SourceID: "src-1",
		Seq:      1,
		Format:   format.PlainXML,
		Filename: "score.musicxml",
		Data:     []byte("<score-partwise/>"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.PDFDeferred {
		t.Error("want PDFDeferred in async mode")
	}
	if result.Derivatives.PDF != nil {
		t.Error("pdf must not be rendered inline in async mode")
	}
}

func TestVersionCacheMemoizes(t *testing.T) {
	calls := 0
	exec := &fakeExec{run: func(_ context.Context, _, _ string, args ...string) (Output, error) {
		calls++
		return Output{Stdout: []byte("MuseScore 4.2.0\nbuild abc")}, nil
	}}

	cache := NewVersionCache(exec)
	if got := cache.Version(context.Background(), "mscore"); got != "MuseScore 4.2.0" {
		t.Errorf("Version = %q", got)
	}
	cache.Version(context.Background(), "mscore")
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}
}

func TestSafeBase(t *testing.T) {
	cases := map[string]string{
		"score.mscz":            "score.mscz",
		"../../etc/passwd":      "passwd",
		`C:\tmp\evil.mscz`:      "evil.mscz",
		"   spaced.musicxml  ":  "spaced.musicxml",
		"":                      "upload",
		"dir/sub/name.musicxml": "name.musicxml",
	}
	for in, want := range cases {
		if got := safeBase(in); got != want {
			t.Errorf("safeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
