package config

import "fmt"

// Validate checks cross-field constraints after normalization.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendFS:
	case StorageBackendAzure:
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage: connection_string required for azure backend")
		}
		if c.Storage.Container == "" {
			return fmt.Errorf("storage: container required for azure backend")
		}
	default:
		return fmt.Errorf("storage: unsupported backend %q", c.Storage.Backend)
	}

	switch c.PDF.Mode {
	case PDFModeSync, PDFModeAsync, PDFModeOff:
	default:
		return fmt.Errorf("pdf: unsupported mode %q", c.PDF.Mode)
	}

	if c.Ingest.MaxUploadMiB <= 0 {
		return fmt.Errorf("ingest: max_upload_mib must be positive")
	}
	if c.Tools.Fossil == "" {
		return fmt.Errorf("tools: fossil binary required")
	}
	if c.Tools.FossilUser == "" {
		return fmt.Errorf("tools: fossil_user required")
	}
	if c.Tools.ScoreEditor == "" && len(c.Tools.ScoreEditorFallbacks) == 0 {
		return fmt.Errorf("tools: at least one score editor binary required")
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMiB) * 1024 * 1024
}
