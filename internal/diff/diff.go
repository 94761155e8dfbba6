// Package diff compares two revisions of a source. The textual diff comes
// from the version-control history; the visual diff runs the external
// musicdiff tool over both canonical documents and merges its marked-up
// page renders into a single PDF.
package diff

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"partita/internal/config"
	"partita/internal/convert"
	"partita/internal/logging"
	"partita/internal/objectstore"
	"partita/internal/services"
	"partita/internal/store"
)

// Differ is the version-control surface this service needs. *vcs.Manager
// satisfies it.
type Differ interface {
	Diff(ctx context.Context, workID, sourceID, fromArtifact, toArtifact, path string) (string, error)
}

// Result bundles the artifacts of one comparison.
type Result struct {
	TextDiff string
	Report   objectstore.Locator
	// PDF is nil when the visual diff could not be produced; that failure
	// never blocks the textual result.
	PDF *objectstore.Locator
}

// Service renders revision comparisons and caches them in the aux bucket.
type Service struct {
	store     *store.Store
	objects   objectstore.Store
	vcs       Differ
	musicdiff *convert.Runner
	workDir   string
	log       *slog.Logger
}

// NewService wires the comparison pipeline.
func NewService(cfg *config.Config, st *store.Store, objects objectstore.Store, differ Differ, exec convert.Executor, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		objects:   objects,
		vcs:       differ,
		musicdiff: convert.NewRunner("musicdiff", []string{cfg.Tools.MusicDiff}, cfg.ExportTimeoutDuration(), exec),
		workDir:   cfg.Paths.WorkDir,
		log:       logging.WithComponent(logger, "diff"),
	}
}

// Compare diffs two revisions of a source by sequence number. Both must
// have been committed; the older revision comes first in the output.
func (s *Service) Compare(ctx context.Context, workID, sourceID string, seqA, seqB int) (*Result, error) {
	if seqA > seqB {
		seqA, seqB = seqB, seqA
	}
	revA, err := s.store.GetRevisionBySequence(ctx, workID, sourceID, seqA)
	if err != nil {
		return nil, err
	}
	revB, err := s.store.GetRevisionBySequence(ctx, workID, sourceID, seqB)
	if err != nil {
		return nil, err
	}
	if revA.ArtifactID == "" || revB.ArtifactID == "" {
		return nil, services.Wrap(services.ErrValidation, "diff", "compare",
			"both revisions must be committed before they can be compared", nil)
	}

	text, err := s.vcs.Diff(ctx, workID, sourceID, revA.ArtifactID, revB.ArtifactID, "score.musicxml")
	if err != nil {
		return nil, err
	}

	reportKey := fmt.Sprintf("%s/%s/diff/%d-%d.diff", workID, sourceID, seqA, seqB)
	report, err := s.objects.Put(ctx, objectstore.BucketAux, reportKey, []byte(text), "text/plain; charset=utf-8")
	if err != nil {
		return nil, err
	}

	result := &Result{TextDiff: text, Report: report}

	pdf, err := s.visualDiff(ctx, workID, sourceID, seqA, seqB, revA, revB)
	if err != nil {
		s.log.Warn("visual diff failed",
			logging.FieldWorkID, workID,
			logging.FieldSourceID, sourceID,
			logging.Error(err))
	} else {
		result.PDF = pdf
	}
	return result, nil
}

// visualDiff runs musicdiff over both canonical documents. The tool writes
// one marked-up PDF per score into the output directory; the two are merged
// into a single side-by-side document.
func (s *Service) visualDiff(ctx context.Context, workID, sourceID string, seqA, seqB int, revA, revB *store.Revision) (*objectstore.Locator, error) {
	if revA.Derivatives.CanonicalXML == nil || revB.Derivatives.CanonicalXML == nil {
		return nil, services.Wrap(services.ErrValidation, "diff", "visual",
			"both revisions need a canonical document", nil)
	}

	dir, err := os.MkdirTemp(s.workDir, "musicdiff-*")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "create workspace", err)
	}
	defer os.RemoveAll(dir)

	fileA := filepath.Join(dir, fmt.Sprintf("rev-%d.musicxml", seqA))
	fileB := filepath.Join(dir, fmt.Sprintf("rev-%d.musicxml", seqB))
	for loc, path := range map[*objectstore.Locator]string{
		revA.Derivatives.CanonicalXML: fileA,
		revB.Derivatives.CanonicalXML: fileB,
	} {
		data, err := s.objects.Get(ctx, loc.Bucket, loc.Key)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "write canonical", err)
		}
	}

	outDir := filepath.Join(dir, "marked")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "create output directory", err)
	}
	if _, err := s.musicdiff.Run(ctx, dir, func(string) []string {
		return []string{fileA, fileB, outDir}
	}); err != nil {
		return nil, err
	}

	marked, err := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if err != nil || len(marked) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "musicdiff produced no pages", err)
	}

	merged := filepath.Join(dir, "diff.pdf")
	if err := api.MergeCreateFile(marked, merged, false, nil); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "merge marked pages", err)
	}
	data, err := os.ReadFile(merged)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "diff", "visual", "read merged pdf", err)
	}

	key := fmt.Sprintf("%s/%s/diff/%d-%d.pdf", workID, sourceID, seqA, seqB)
	loc, err := s.objects.Put(ctx, objectstore.BucketAux, key, data, "application/pdf")
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
