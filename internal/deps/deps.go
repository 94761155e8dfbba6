// Package deps reports availability of the external binaries the conversion
// and commit pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"partita/internal/config"
)

// Requirement defines an external dependency Partita relies on.
type Requirement struct {
	Name        string
	Commands    []string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the dependency list from configuration. Fallback
// candidates count as satisfying a requirement; the first available name
// is reported.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "fossil",
			Commands:    []string{cfg.Tools.Fossil},
			Description: "version control for canonical score documents",
		},
		{
			Name:        "score editor",
			Commands:    cfg.ScoreEditorCandidates(),
			Description: "MuseScore export and PDF rendering",
		},
		{
			Name:        "rasterizer",
			Commands:    cfg.RasterizerCandidates(),
			Description: "PDF first-page rasterization for thumbnails",
			Optional:    true,
		},
		{
			Name:        "linearizer",
			Commands:    cfg.LinearizerCandidates(),
			Description: "MusicXML linearization to LMX tokens",
			Optional:    true,
		},
		{
			Name:        "musicdiff",
			Commands:    []string{cfg.Tools.MusicDiff},
			Description: "visual score diff PDFs",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		for _, command := range req.Commands {
			command = strings.TrimSpace(command)
			if command == "" {
				continue
			}
			if status.Command == "" {
				status.Command = command
			}
			if _, err := exec.LookPath(command); err == nil {
				status.Command = command
				status.Available = true
				break
			}
		}
		if status.Command == "" {
			status.Detail = "command not configured"
		} else if !status.Available {
			status.Detail = fmt.Sprintf("none of %s found", strings.Join(req.Commands, ", "))
		}
		results = append(results, status)
	}
	return results
}
