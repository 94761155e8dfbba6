package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"partita/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.PDF.Mode != config.PDFModeSync {
		t.Fatalf("unexpected default pdf mode %q", cfg.PDF.Mode)
	}
	if cfg.Storage.Backend != config.StorageBackendFS {
		t.Fatalf("unexpected default backend %q", cfg.Storage.Backend)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partita.toml")
	contents := `
[pdf]
mode = "ASYNC"

[tools]
export_timeout = 3

[storage]
backend = "fs"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config file to be found")
	}
	if cfg.PDF.Mode != config.PDFModeAsync {
		t.Fatalf("mode not lowercased: %q", cfg.PDF.Mode)
	}
	if cfg.Tools.ExportTimeout != config.MinExportTimeout {
		t.Fatalf("export timeout not clamped to floor: %d", cfg.Tools.ExportTimeout)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"backend":   func(c *config.Config) { c.Storage.Backend = "s3" },
		"pdf mode":  func(c *config.Config) { c.PDF.Mode = "lazy" },
		"max mib":   func(c *config.Config) { c.Ingest.MaxUploadMiB = 0 },
		"no fossil": func(c *config.Config) { c.Tools.Fossil = "" },
		"azure conn": func(c *config.Config) {
			c.Storage.Backend = config.StorageBackendAzure
			c.Storage.ConnectionString = ""
		},
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestScoreEditorCandidatesDedupes(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.ScoreEditor = "musescore"
	cfg.Tools.ScoreEditorFallbacks = []string{"musescore", "mscore"}
	got := cfg.ScoreEditorCandidates()
	if len(got) != 2 || got[0] != "musescore" || got[1] != "mscore" {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}
