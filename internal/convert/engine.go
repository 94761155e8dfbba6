package convert

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"partita/internal/config"
	"partita/internal/format"
	"partita/internal/logging"
	"partita/internal/manifest"
	"partita/internal/objectstore"
	"partita/internal/services"
)

// Pipeline step names recorded in manifest notes.
const (
	StepExportContainer  = "export-container"
	StepExtractCanonical = "extract-canonical"
	StepReverseContainer = "reverse-container"
	StepLinearize        = "linearize"
	StepPDF              = "pdf"
)

// Content types assigned to derivative blobs.
const (
	contentTypeContainer = "application/vnd.recordare.musicxml"
	contentTypeMusicXML  = "application/vnd.recordare.musicxml+xml"
	contentTypeNative    = "application/x-musescore"
	contentTypeLinear    = "text/plain; charset=utf-8"
)

// Input describes one classified upload entering the cascade. Raw is the
// already-stored upload blob; the engine never re-stores it.
type Input struct {
	WorkID   string
	SourceID string
	Seq      int
	Format   format.Format
	Filename string
	Data     []byte
	Raw      objectstore.Locator
}

// Result carries everything the orchestrator needs after the cascade:
// the derivative locator bag, the manifest with its step log, the canonical
// document (when one was recovered), and whether PDF generation was handed
// to the deferred-job worker.
type Result struct {
	Derivatives   manifest.DerivativeArtifacts
	Manifest      *manifest.Manifest
	CanonicalName string
	CanonicalData []byte
	PDFDeferred   bool
}

// Pending reports whether the revision lacks a canonical document.
func (r *Result) Pending() bool {
	return r.CanonicalData == nil
}

// Engine runs the per-format conversion cascade. All external tool
// invocations go through fallback runners so a missing preferred binary
// degrades instead of failing the revision.
type Engine struct {
	store      objectstore.Store
	editor     *Runner
	rasterizer *Runner
	linearizer *Runner
	versions   *VersionCache
	workDir    string
	pdfMode    string
	thumbWidth int
	log        *slog.Logger
}

// NewEngine wires the cascade against the configured tool chain.
func NewEngine(cfg *config.Config, store objectstore.Store, exec Executor, logger *slog.Logger) *Engine {
	timeout := cfg.ExportTimeoutDuration()
	return &Engine{
		store:      store,
		editor:     NewRunner("score-editor", cfg.ScoreEditorCandidates(), timeout, exec),
		rasterizer: NewRunner("rasterizer", cfg.RasterizerCandidates(), timeout, exec),
		linearizer: NewRunner("linearizer", cfg.LinearizerCandidates(), timeout, exec),
		versions:   NewVersionCache(exec),
		workDir:    cfg.Paths.WorkDir,
		pdfMode:    cfg.PDF.Mode,
		thumbWidth: cfg.PDF.ThumbnailWidth,
		log:        logging.WithComponent(logger, "convert"),
	}
}

// Run executes the cascade for one upload. Hard failures (workspace or
// object store errors) return an error; external tool failures are absorbed
// into manifest notes and reflected in Result.Pending.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	m := manifest.New(in.WorkID, in.SourceID, in.Seq)
	m.AddArtifact(manifest.ArtifactRaw, in.Raw)

	result := &Result{Manifest: m}

	dir, err := os.MkdirTemp(e.workDir, "convert-*")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "run", "create workspace", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, safeBase(in.Filename))
	if err := os.WriteFile(src, in.Data, 0o600); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "run", "write upload to workspace", err)
	}

	switch in.Format {
	case format.PlainXML:
		err = e.runPlainXML(ctx, in, dir, src, result)
	case format.CompressedContainer:
		err = e.runContainer(ctx, in, result)
	case format.NativePackage, format.NativeSource:
		err = e.runNative(ctx, in, dir, src, result)
	default:
		return nil, services.Wrap(services.ErrUnsupportedFormat, "convert", "run", "unknown format "+string(in.Format), nil)
	}
	if err != nil {
		return nil, err
	}

	if result.CanonicalData != nil {
		if err := e.storeCanonical(ctx, in, result); err != nil {
			return nil, err
		}
		e.runLinearize(ctx, in, dir, result)
	}

	if err := e.runPDF(ctx, in, result); err != nil {
		return nil, err
	}

	m.Pending = result.Pending()
	return result, nil
}

// runPlainXML takes the upload as the canonical document and attempts the
// reverse conversion to a normalized container. A reverse failure never
// makes the revision pending; the canonical document already exists.
func (e *Engine) runPlainXML(ctx context.Context, in Input, dir, src string, result *Result) error {
	m := result.Manifest
	result.CanonicalName = safeBase(in.Filename)
	result.CanonicalData = in.Data
	e.note(m, StepExtractCanonical, manifest.OutcomeOK, "upload is canonical")

	out := filepath.Join(dir, "score.mxl")
	run, err := e.editor.Run(ctx, dir, func(string) []string {
		return []string{"-o", out, src}
	})
	if err != nil {
		e.note(m, StepReverseContainer, manifest.OutcomeFailed, err.Error())
		return nil
	}
	e.recordTool(ctx, m, "score-editor", run.Binary)

	data, err := os.ReadFile(out)
	if err != nil {
		e.note(m, StepReverseContainer, manifest.OutcomeFailed, "editor produced no container")
		return nil
	}
	loc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, "score.mxl"), data, contentTypeContainer)
	if err != nil {
		return err
	}
	result.Derivatives.NormalizedContainer = &loc
	m.AddArtifact(manifest.ArtifactNormalizedContainer, loc)
	e.note(m, StepReverseContainer, manifest.OutcomeOK, "")
	return nil
}

// runContainer treats the upload itself as the normalized container and
// extracts the canonical document from it.
func (e *Engine) runContainer(ctx context.Context, in Input, result *Result) error {
	m := result.Manifest
	loc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, "score.mxl"), in.Data, contentTypeContainer)
	if err != nil {
		return err
	}
	result.Derivatives.NormalizedContainer = &loc
	m.AddArtifact(manifest.ArtifactNormalizedContainer, loc)

	name, contents, err := ExtractCanonical(in.Data)
	if err != nil {
		e.note(m, StepExtractCanonical, manifest.OutcomeFailed, err.Error())
		return nil
	}
	result.CanonicalName = filepath.Base(name)
	result.CanonicalData = contents
	e.note(m, StepExtractCanonical, manifest.OutcomeOK, name)
	return nil
}

// runNative stores the native project, exports a normalized container via
// the score editor, and extracts the canonical document from the export.
func (e *Engine) runNative(ctx context.Context, in Input, dir, src string, result *Result) error {
	m := result.Manifest
	nativeLoc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, safeBase(in.Filename)), in.Data, contentTypeNative)
	if err != nil {
		return err
	}
	result.Derivatives.NativePackage = &nativeLoc
	m.AddArtifact(manifest.ArtifactNativePackage, nativeLoc)

	out := filepath.Join(dir, "score.mxl")
	run, err := e.editor.Run(ctx, dir, func(string) []string {
		return []string{"-o", out, src}
	})
	if err != nil {
		e.note(m, StepExportContainer, manifest.OutcomeFailed, err.Error())
		return nil
	}
	e.recordTool(ctx, m, "score-editor", run.Binary)

	data, err := os.ReadFile(out)
	if err != nil {
		e.note(m, StepExportContainer, manifest.OutcomeFailed, "editor produced no container")
		return nil
	}
	loc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, "score.mxl"), data, contentTypeContainer)
	if err != nil {
		return err
	}
	result.Derivatives.NormalizedContainer = &loc
	m.AddArtifact(manifest.ArtifactNormalizedContainer, loc)
	e.note(m, StepExportContainer, manifest.OutcomeOK, "")

	name, contents, err := ExtractCanonical(data)
	if err != nil {
		e.note(m, StepExtractCanonical, manifest.OutcomeFailed, err.Error())
		return nil
	}
	result.CanonicalName = filepath.Base(name)
	result.CanonicalData = contents
	e.note(m, StepExtractCanonical, manifest.OutcomeOK, name)
	return nil
}

func (e *Engine) storeCanonical(ctx context.Context, in Input, result *Result) error {
	name := result.CanonicalName
	if name == "" {
		name = "score.musicxml"
	}
	loc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, name), result.CanonicalData, contentTypeMusicXML)
	if err != nil {
		return err
	}
	result.Derivatives.CanonicalXML = &loc
	result.Manifest.AddArtifact(manifest.ArtifactCanonicalXML, loc)
	return nil
}

func (e *Engine) runLinearize(ctx context.Context, in Input, dir string, result *Result) {
	m := result.Manifest
	canonicalPath := filepath.Join(dir, "canonical.musicxml")
	if err := os.WriteFile(canonicalPath, result.CanonicalData, 0o600); err != nil {
		e.note(m, StepLinearize, manifest.OutcomeFailed, "write canonical to workspace")
		return
	}
	data, err := e.linearize(ctx, m, dir, canonicalPath)
	if err != nil {
		e.note(m, StepLinearize, manifest.OutcomeFailed, err.Error())
		return
	}
	loc, err := e.store.Put(ctx, objectstore.BucketDerivatives, e.key(in.WorkID, in.SourceID, in.Seq, "score.lmx"), data, contentTypeLinear)
	if err != nil {
		e.note(m, StepLinearize, manifest.OutcomeFailed, err.Error())
		return
	}
	result.Derivatives.LinearizedXML = &loc
	m.AddArtifact(manifest.ArtifactLinearizedXML, loc)
	e.note(m, StepLinearize, manifest.OutcomeOK, "")
}

// runPDF renders the score PDF according to the configured mode. The PDF
// source is the native project when the upload was native (the editor
// renders those with better fidelity) and the canonical document otherwise.
func (e *Engine) runPDF(ctx context.Context, in Input, result *Result) error {
	m := result.Manifest
	sourceName, sourceData := e.pdfSource(in, result)
	if sourceData == nil {
		e.note(m, StepPDF, manifest.OutcomeSkipped, "no renderable source")
		return nil
	}

	switch e.pdfMode {
	case config.PDFModeOff:
		e.note(m, StepPDF, manifest.OutcomeSkipped, "disabled")
		return nil
	case config.PDFModeAsync:
		result.PDFDeferred = true
		e.note(m, StepPDF, manifest.OutcomeSkipped, "deferred")
		return nil
	}

	pdfLoc, thumbLoc, err := e.RenderPDF(ctx, m, in.WorkID, in.SourceID, in.Seq, sourceName, sourceData)
	if err != nil {
		e.note(m, StepPDF, manifest.OutcomeFailed, err.Error())
		return nil
	}
	result.Derivatives.PDF = &pdfLoc
	result.Derivatives.Thumbnail = &thumbLoc
	m.AddArtifact(manifest.ArtifactPDF, pdfLoc)
	m.AddArtifact(manifest.ArtifactThumbnail, thumbLoc)
	e.note(m, StepPDF, manifest.OutcomeOK, "")
	return nil
}

// pdfSource picks what to hand the editor for PDF rendering. Returns nil
// data when nothing renderable exists.
func (e *Engine) pdfSource(in Input, result *Result) (string, []byte) {
	if in.Format.IsNative() {
		return safeBase(in.Filename), in.Data
	}
	if result.CanonicalData != nil {
		name := result.CanonicalName
		if name == "" {
			name = "score.musicxml"
		}
		return name, result.CanonicalData
	}
	return "", nil
}

func (e *Engine) note(m *manifest.Manifest, step string, outcome manifest.Outcome, detail string) {
	m.Append(step, outcome, detail)
	if outcome == manifest.OutcomeFailed {
		e.log.Warn("conversion step failed", logging.FieldStep, step, "detail", detail)
	}
}

// recordTool stamps the manifest with the version of the binary a step used.
// A nil manifest (the deferred-job path) records nothing.
func (e *Engine) recordTool(ctx context.Context, m *manifest.Manifest, role, binary string) {
	if m == nil {
		return
	}
	if _, ok := m.Tooling[role]; ok {
		return
	}
	m.Tooling[role] = binary + " " + e.versions.Version(ctx, binary)
}

// safeBase strips any client-supplied path components from an upload name.
func safeBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}
