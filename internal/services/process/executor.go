// Package process runs external commands and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 2 * time.Second

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a process to completion. A non-nil error means the process
// could not be started; a process that ran and failed reports it through
// Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, env []string, name string, args ...string) (Result, error)
}

// DefaultExecutor is the default executor using os/exec.
type DefaultExecutor struct{}

// Run executes name with args. env entries are appended to the current
// environment.
func (e *DefaultExecutor) Run(ctx context.Context, env []string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// children that keep the output pipes open must not outlive the deadline
	cmd.WaitDelay = waitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// CommandLine renders name and args as a single space separated string.
func CommandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
