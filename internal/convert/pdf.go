package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"partita/internal/manifest"
	"partita/internal/objectstore"
	"partita/internal/services"
)

// RenderPDF exports the given score source to a PDF plus a first-page
// thumbnail and stores both under the revision's derivative prefix. The
// source may be a canonical MusicXML document or a native editor file; the
// score editor accepts either. Used by both the synchronous pipeline path
// and the deferred-job worker.
func (e *Engine) RenderPDF(ctx context.Context, m *manifest.Manifest, workID, sourceID string, seq int, sourceName string, sourceData []byte) (pdf, thumbnail objectstore.Locator, err error) {
	dir, err := os.MkdirTemp(e.workDir, "pdf-*")
	if err != nil {
		return pdf, thumbnail, services.Wrap(services.ErrExternalTool, "convert", "render-pdf", "create workspace", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, safeBase(sourceName))
	if err := os.WriteFile(src, sourceData, 0o600); err != nil {
		return pdf, thumbnail, services.Wrap(services.ErrExternalTool, "convert", "render-pdf", "write source", err)
	}

	pdfPath, err := e.exportPDF(ctx, m, dir, src)
	if err != nil {
		return pdf, thumbnail, err
	}
	pdfData, err := os.ReadFile(pdfPath)
	if err != nil {
		return pdf, thumbnail, services.Wrap(services.ErrExternalTool, "convert", "render-pdf", "read exported pdf", err)
	}
	pdf, err = e.store.Put(ctx, objectstore.BucketDerivatives, e.key(workID, sourceID, seq, "score.pdf"), pdfData, "application/pdf")
	if err != nil {
		return pdf, thumbnail, err
	}

	thumbData, err := e.renderThumbnail(ctx, m, dir, pdfPath)
	if err != nil {
		return pdf, thumbnail, err
	}
	thumbnail, err = e.store.Put(ctx, objectstore.BucketDerivatives, e.key(workID, sourceID, seq, "thumb.png"), thumbData, "image/png")
	return pdf, thumbnail, err
}

// exportPDF drives the score editor and validates the result has at least
// one page before anyone downstream trusts it.
func (e *Engine) exportPDF(ctx context.Context, m *manifest.Manifest, dir, src string) (string, error) {
	out := filepath.Join(dir, "score.pdf")
	result, err := e.editor.Run(ctx, dir, func(string) []string {
		return []string{"-o", out, src}
	})
	if err != nil {
		return "", err
	}
	e.recordTool(ctx, m, "score-editor", result.Binary)

	pages, err := api.PageCountFile(out)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "convert", "export-pdf", "exported pdf unreadable", err)
	}
	if pages == 0 {
		return "", services.Wrap(services.ErrExternalTool, "convert", "export-pdf", "exported pdf has no pages", nil)
	}
	return out, nil
}

// renderThumbnail trims the PDF to its first page, then rasterizes it. The
// two supported rasterizers take different argument shapes.
func (e *Engine) renderThumbnail(ctx context.Context, m *manifest.Manifest, dir, pdfPath string) ([]byte, error) {
	firstPage := filepath.Join(dir, "thumb-page.pdf")
	if err := api.TrimFile(pdfPath, firstPage, []string{"1"}, nil); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "thumbnail", "trim first page", err)
	}

	out := filepath.Join(dir, "thumb.png")
	width := strconv.Itoa(e.thumbWidth)
	result, err := e.rasterizer.Run(ctx, dir, func(binary string) []string {
		if strings.Contains(filepath.Base(binary), "pdftoppm") {
			return []string{"-png", "-singlefile", "-scale-to-x", width, "-scale-to-y", "-1", firstPage, strings.TrimSuffix(out, ".png")}
		}
		return []string{"draw", "-o", out, "-w", width, firstPage}
	})
	if err != nil {
		return nil, err
	}
	e.recordTool(ctx, m, "rasterizer", result.Binary)

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "thumbnail", "rasterizer produced no output", err)
	}
	return data, nil
}

func (e *Engine) key(workID, sourceID string, seq int, name string) string {
	return fmt.Sprintf("%s/%s/%d/%s", workID, sourceID, seq, name)
}
