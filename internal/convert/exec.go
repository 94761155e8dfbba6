package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Output captures a finished subprocess's pipes.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Executor abstracts subprocess execution for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args ...string) (Output, error)
}

type commandExecutor struct{}

// NewExecutor returns the real subprocess executor.
func NewExecutor() Executor {
	return commandExecutor{}
}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args ...string) (Output, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return Output{}, fmt.Errorf("lookup %s: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec
	cmd.Dir = dir
	// Converters may spawn helper processes; a timeout has to take the
	// whole group down, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if runErr != nil {
		return out, runErr
	}
	return out, nil
}
