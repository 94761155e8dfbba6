package config

// Storage backend names accepted by Validate.
const (
	StorageBackendFS    = "fs"
	StorageBackendAzure = "azure"
)

// PDF generation modes accepted by Validate.
const (
	PDFModeSync  = "sync"
	PDFModeAsync = "async"
	PDFModeOff   = "off"
)

// Export timeout bounds in seconds.
const (
	DefaultExportTimeout = 300
	MinExportTimeout     = 10
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  "~/.local/share/partita/objects",
			RepoRoot: "~/.local/share/partita/repos",
			WorkDir:  "~/.cache/partita/work",
			LogDir:   "~/.local/share/partita/logs",
		},
		Storage: Storage{
			Backend:   StorageBackendFS,
			Container: "partita",
		},
		Tools: Tools{
			ScoreEditor:          "mscore",
			ScoreEditorFallbacks: []string{"musescore", "mscore4portable", "musescore4"},
			Rasterizer:           "mutool",
			RasterizerFallbacks:  []string{"pdftoppm"},
			Linearizer:           "linearize",
			LinearizerFallbacks:  []string{"linearize.py"},
			MusicDiff:            "musicdiff",
			Fossil:               "fossil",
			FossilUser:           "partita",
			ExportTimeout:        DefaultExportTimeout,
		},
		PDF: PDF{
			Mode:           PDFModeSync,
			ThumbnailWidth: 480,
		},
		Ingest: Ingest{
			MaxUploadMiB: 32,
		},
		IMSLP: IMSLP{
			Enabled:        false,
			BaseURL:        "https://imslp.org/w/api.php",
			RequestTimeout: 15,
			Retries:        3,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Daemon: Daemon{
			PollInterval:   15,
			JobConcurrency: 2,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: 30,
		},
	}
}
