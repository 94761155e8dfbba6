package convert

import (
	"context"
	"strings"
	"sync"
	"time"
)

// VersionCache memoizes `binary --version` output so manifests can record
// tool versions without re-spawning the tool for every revision.
type VersionCache struct {
	exec Executor

	mu       sync.Mutex
	versions map[string]string
}

func NewVersionCache(exec Executor) *VersionCache {
	return &VersionCache{exec: exec, versions: make(map[string]string)}
}

// Version returns the first line of the binary's --version output, or
// "unknown" when the probe fails. Results are cached per binary name.
func (c *VersionCache) Version(ctx context.Context, binary string) string {
	c.mu.Lock()
	if v, ok := c.versions[binary]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version := "unknown"
	out, err := c.exec.Run(probeCtx, "", binary, "--version")
	if err == nil {
		text := strings.TrimSpace(string(out.Stdout))
		if text == "" {
			text = strings.TrimSpace(string(out.Stderr))
		}
		if line, _, _ := strings.Cut(text, "\n"); strings.TrimSpace(line) != "" {
			version = strings.TrimSpace(line)
		}
	}

	c.mu.Lock()
	c.versions[binary] = version
	c.mu.Unlock()
	return version
}
