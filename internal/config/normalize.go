package config

import (
	"strings"
	"time"
)

func (c *Config) normalize() error {
	var err error
	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.RepoRoot,
		&c.Paths.WorkDir,
		&c.Paths.LogDir,
	} {
		if *field, err = expandPath(strings.TrimSpace(*field)); err != nil {
			return err
		}
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.Container = strings.TrimSpace(c.Storage.Container)
	c.PDF.Mode = strings.ToLower(strings.TrimSpace(c.PDF.Mode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	c.Tools.ScoreEditor = strings.TrimSpace(c.Tools.ScoreEditor)
	c.Tools.Rasterizer = strings.TrimSpace(c.Tools.Rasterizer)
	c.Tools.Linearizer = strings.TrimSpace(c.Tools.Linearizer)
	c.Tools.MusicDiff = strings.TrimSpace(c.Tools.MusicDiff)
	c.Tools.Fossil = strings.TrimSpace(c.Tools.Fossil)
	c.Tools.FossilUser = strings.TrimSpace(c.Tools.FossilUser)
	c.Tools.ScoreEditorFallbacks = trimAll(c.Tools.ScoreEditorFallbacks)
	c.Tools.RasterizerFallbacks = trimAll(c.Tools.RasterizerFallbacks)
	c.Tools.LinearizerFallbacks = trimAll(c.Tools.LinearizerFallbacks)

	if c.Tools.ExportTimeout <= 0 {
		c.Tools.ExportTimeout = DefaultExportTimeout
	}
	if c.Tools.ExportTimeout < MinExportTimeout {
		c.Tools.ExportTimeout = MinExportTimeout
	}
	if c.PDF.ThumbnailWidth <= 0 {
		c.PDF.ThumbnailWidth = 480
	}
	if c.Daemon.PollInterval <= 0 {
		c.Daemon.PollInterval = 15
	}
	if c.Daemon.JobConcurrency <= 0 {
		c.Daemon.JobConcurrency = 1
	}
	return nil
}

// ScoreEditorCandidates returns the export binary names in fallback order,
// preferred name first, with duplicates removed.
func (c *Config) ScoreEditorCandidates() []string {
	return dedupe(c.Tools.ScoreEditor, c.Tools.ScoreEditorFallbacks)
}

// RasterizerCandidates returns the thumbnail rasterizer names in fallback order.
func (c *Config) RasterizerCandidates() []string {
	return dedupe(c.Tools.Rasterizer, c.Tools.RasterizerFallbacks)
}

// LinearizerCandidates returns the linearizer binary names in fallback order.
func (c *Config) LinearizerCandidates() []string {
	return dedupe(c.Tools.Linearizer, c.Tools.LinearizerFallbacks)
}

// ExportTimeoutDuration returns the per-invocation external tool timeout.
func (c *Config) ExportTimeoutDuration() time.Duration {
	return time.Duration(c.Tools.ExportTimeout) * time.Second
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(preferred string, fallbacks []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(fallbacks)+1)
	for _, name := range append([]string{preferred}, fallbacks...) {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
