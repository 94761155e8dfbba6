package testsupport

import (
	"path/filepath"
	"testing"

	"partita/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "objects")
	cfg.Paths.RepoRoot = filepath.Join(base, "repos")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithPDFMode sets the derivative PDF generation mode on the test config.
func WithPDFMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.PDF.Mode = mode
	}
}

// WithMaxUploadMiB sets the upload size limit on the test config.
func WithMaxUploadMiB(mib int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingest.MaxUploadMiB = mib
	}
}
