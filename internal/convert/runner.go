package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"partita/internal/services"
)

// RunResult reports a successful fallback invocation.
type RunResult struct {
	Binary string
	Stdout []byte
	Stderr []byte
}

// Runner tries a prioritized list of candidate binaries for one external
// capability until one succeeds. Every invocation is bounded by the
// configured timeout; a timed-out candidate is treated as a failure and the
// next candidate is tried.
type Runner struct {
	name       string
	candidates []string
	timeout    time.Duration
	exec       Executor
}

// NewRunner builds a fallback runner for one capability.
func NewRunner(name string, candidates []string, timeout time.Duration, exec Executor) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{name: name, candidates: candidates, timeout: timeout, exec: exec}
}

// Run invokes candidates in priority order. argsFor builds the argument
// list per binary so candidates with different CLI shapes can share one
// fallback chain.
func (r *Runner) Run(ctx context.Context, dir string, argsFor func(binary string) []string) (RunResult, error) {
	if len(r.candidates) == 0 {
		return RunResult{}, services.Wrap(services.ErrConfiguration, r.name, "run", "no candidate binaries configured", nil)
	}

	var failures []string
	for _, binary := range r.candidates {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		out, err := r.exec.Run(attemptCtx, dir, binary, argsFor(binary)...)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return RunResult{Binary: binary, Stdout: out.Stdout, Stderr: out.Stderr}, nil
		}
		if timedOut {
			failures = append(failures, fmt.Sprintf("%s: timed out after %s", binary, r.timeout))
			continue
		}
		detail := strings.TrimSpace(string(out.Stderr))
		if detail == "" {
			detail = err.Error()
		}
		failures = append(failures, fmt.Sprintf("%s: %s", binary, detail))
	}

	marker := services.ErrExternalTool
	if allTimedOut(failures) {
		marker = services.ErrTimeout
	}
	return RunResult{}, services.Wrap(marker, r.name, "run", strings.Join(failures, "; "), nil)
}

func allTimedOut(failures []string) bool {
	for _, failure := range failures {
		if !strings.Contains(failure, "timed out") {
			return false
		}
	}
	return len(failures) > 0
}
