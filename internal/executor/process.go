// Package executor runs external processes for forge: runtime probes,
// delegate render engines, git and plugin actions.
package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

// waitDelay is how long Run waits for I/O to drain after the process was
// killed on context cancellation.
const waitDelay = 2 * time.Second

// Command describes a single process invocation.
type Command struct {
	// Path is the executable, resolved through PATH when it has no separator.
	Path string
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the current environment.
	Env []string

	Stdin io.Reader

	// Stdout and Stderr receive the process output when set. Otherwise the
	// output is captured into the Result.
	Stdout io.Writer
	Stderr io.Writer
}

// Result is what a finished process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ProcessRunner defines an interface for running external processes.
// This abstraction allows for dependency injection and easier testing.
type ProcessRunner interface {
	// Run executes the command and waits for it to exit. A non-zero exit is
	// reported as an error wrapping *exec.ExitError.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RealProcessRunner implements ProcessRunner using actual os/exec commands.
type RealProcessRunner struct{}

// NewRealProcessRunner creates a new real process runner.
func NewRealProcessRunner() *RealProcessRunner {
	return &RealProcessRunner{}
}

// Run executes a real external process. When ctx is cancelled the process
// and every descendant it spawned are killed.
func (r *RealProcessRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) // #nosec G204 -- callers pass runtimes and scripts chosen by the user or plugin
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}

	cmd.Cancel = func() error {
		return KillTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil && ctx.Err() != nil {
		// Report the cancellation rather than "signal: killed".
		return result, errors.Join(ctx.Err(), err)
	}
	return result, err
}

// ExitCode extracts the exit status from an error returned by Run, or -1
// when the process did not exit normally.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
