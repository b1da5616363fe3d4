package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/executor"
)

// varsFilePattern names the temporary variables document handed to engines.
const varsFilePattern = "forge-vars-*.json"

// Invocation is a single delegated render.
type Invocation struct {
	Runtime   string
	Script    string
	Input     string
	Output    string
	Variables map[string]any
}

// Adapter runs delegate engines with the four-argument contract:
//
//	runtime script input output vars.json
//
// Only the exit status decides success. Output streams are logged at debug
// level and the tail of stderr is attached to failures.
type Adapter struct {
	runner  executor.ProcessRunner
	timeout time.Duration
	tempDir string
	logger  hclog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithTempDir sets where variables files are created. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(a *Adapter) { a.tempDir = dir }
}

// WithLogger sets the adapter logger.
func WithLogger(l hclog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter that launches engines through runner.
func NewAdapter(runner executor.ProcessRunner, opts ...Option) *Adapter {
	a := &Adapter{
		runner: runner,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Render runs one delegated render. Any failure, including a timeout, is
// reported as RenderFailed for inv.Input. The variables file is removed
// before Render returns, and so is an output the failed engine created.
func (a *Adapter) Render(ctx context.Context, inv Invocation) error {
	vars := inv.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return errs.RenderFailed(inv.Input, fmt.Errorf("failed to encode variables: %w", err))
	}

	varsFile, err := os.CreateTemp(a.tempDir, varsFilePattern)
	if err != nil {
		return errs.RenderFailed(inv.Input, fmt.Errorf("failed to create variables file: %w", err))
	}
	varsPath := varsFile.Name()
	defer os.Remove(varsPath)

	if _, err := varsFile.Write(data); err != nil {
		varsFile.Close()
		return errs.RenderFailed(inv.Input, fmt.Errorf("failed to write variables file: %w", err))
	}
	if err := varsFile.Close(); err != nil {
		return errs.RenderFailed(inv.Input, fmt.Errorf("failed to write variables file: %w", err))
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	_, statErr := os.Lstat(inv.Output)
	preexisting := statErr == nil

	a.logger.Debug("running engine", "runtime", inv.Runtime, "script", inv.Script, "input", inv.Input, "output", inv.Output)
	res, err := a.runner.Run(ctx, executor.Command{
		Path: inv.Runtime,
		Args: []string{inv.Script, inv.Input, inv.Output, varsPath},
	})
	if len(res.Stdout) > 0 {
		a.logger.Debug("engine stdout", "input", inv.Input, "output", strings.TrimSpace(string(res.Stdout)))
	}
	if len(res.Stderr) > 0 {
		a.logger.Debug("engine stderr", "input", inv.Input, "output", strings.TrimSpace(string(res.Stderr)))
	}
	if err == nil {
		return nil
	}

	if !preexisting {
		if rmErr := os.Remove(inv.Output); rmErr == nil {
			a.logger.Debug("removed partial output", "output", inv.Output)
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%s timed out after %s: %w", inv.Runtime, a.timeout, err)
	case errors.Is(err, context.Canceled):
		err = fmt.Errorf("%s interrupted: %w", inv.Runtime, err)
	case res.ExitCode > 0:
		err = fmt.Errorf("%s %s exited with status %d%s", inv.Runtime, inv.Script, res.ExitCode, stderrTail(res.Stderr))
	default:
		err = fmt.Errorf("failed to launch %s: %w", inv.Runtime, err)
	}
	return errs.RenderFailed(inv.Input, err)
}

// stderrTail returns the last non-empty stderr line formatted for an error
// message, or "".
func stderrTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return ""
	}
	return ": " + last
}
