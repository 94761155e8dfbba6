package vcs

import (
	"bytes"
	"context"
	"os/exec"

	"partita/internal/services"
)

// Output captures a fossil invocation's streams.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Executor runs the fossil binary. Tests substitute a scripted fake.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args ...string) (Output, error)
}

type commandExecutor struct{}

// NewExecutor returns the real subprocess-backed executor.
func NewExecutor() Executor {
	return commandExecutor{}
}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args ...string) (Output, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "vcs", "lookup", binary+" not found in PATH", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}
