package convert

import (
	"context"
	"os"
	"path/filepath"

	"partita/internal/manifest"
	"partita/internal/services"
)

// linearize flattens a canonical MusicXML document into the token stream
// used for revision diffing. The linearizer contract is `bin <in> <out>`
// for every candidate binary.
func (e *Engine) linearize(ctx context.Context, m *manifest.Manifest, dir, canonicalPath string) ([]byte, error) {
	out := filepath.Join(dir, "score.lmx")
	result, err := e.linearizer.Run(ctx, dir, func(string) []string {
		return []string{canonicalPath, out}
	})
	if err != nil {
		return nil, err
	}
	e.recordTool(ctx, m, "linearizer", result.Binary)

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "linearize", "linearizer produced no output", err)
	}
	return data, nil
}
