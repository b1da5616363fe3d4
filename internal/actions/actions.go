// Package actions runs the named command sequences a plugin declares, such
// as "build" or "test", inside a project directory.
package actions

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/logging"
	"github.com/jmylchreest/forge/internal/executor"
	"github.com/jmylchreest/forge/internal/plugin"
)

// Runner executes plugin actions through a shell.
type Runner struct {
	runner executor.ProcessRunner
	logger hclog.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRunner creates an action runner. Command output is streamed to stdout
// and stderr.
func NewRunner(runner executor.ProcessRunner, stdout, stderr io.Writer, logger hclog.Logger) *Runner {
	return &Runner{runner: runner, logger: logging.OrNull(logger), stdout: stdout, stderr: stderr}
}

// Run executes every command of action in order in dir and stops at the
// first one that fails. An unknown action is NotFound.
func (r *Runner) Run(ctx context.Context, p *plugin.Descriptor, action, dir string) error {
	cmds, ok := p.Action(action)
	if !ok {
		return errs.NotFound("run action", action, fmt.Errorf("plugin %s defines no such action", p.Name))
	}

	env := []string{
		"FORGE_PLUGIN=" + p.Name,
		"FORGE_PLUGIN_VERSION=" + p.Version,
		"FORGE_PROJECT_DIR=" + dir,
	}
	if p.Dir != "" {
		env = append(env, "FORGE_PLUGIN_DIR="+p.Dir)
	}

	shell, flag := shellCommand()
	for i, line := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Info("running", "action", action, "step", i+1, "of", len(cmds), "command", line)

		res, err := r.runner.Run(ctx, executor.Command{
			Path:   shell,
			Args:   []string{flag, line},
			Dir:    dir,
			Env:    env,
			Stdout: r.stdout,
			Stderr: r.stderr,
		})
		if err != nil {
			return fmt.Errorf("action %s step %d (%q) failed with exit code %d: %w", action, i+1, line, res.ExitCode, err)
		}
	}
	return nil
}

func shellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}
