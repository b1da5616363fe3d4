package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/logging"
	"github.com/jmylchreest/forge/internal/render/engine"
)

// Context is the input of a single render call.
type Context struct {
	InputPath  string
	OutputPath string
	Variables  map[string]any
}

// EngineRunner runs a delegated render. *engine.Adapter implements it.
type EngineRunner interface {
	Render(ctx context.Context, inv engine.Invocation) error
}

// ScriptLocator resolves built-in engine script names to paths.
// *engine.Scripts implements it.
type ScriptLocator interface {
	Path(name string) (string, error)
}

// Dispatcher executes exactly one strategy per file.
type Dispatcher struct {
	engines EngineRunner
	scripts ScriptLocator
	logger  hclog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(engines EngineRunner, scripts ScriptLocator, logger hclog.Logger) *Dispatcher {
	return &Dispatcher{engines: engines, scripts: scripts, logger: logging.OrNull(logger)}
}

// Dispatch renders rc with strategy s, creating the output's parent
// directories first. Failures are RenderFailed for rc.InputPath; there is
// no retry and no fallback to another strategy.
func (d *Dispatcher) Dispatch(ctx context.Context, s Strategy, rc Context) error {
	if dir := filepath.Dir(rc.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.IO("create output directory", dir, err)
		}
	}

	d.logger.Debug("rendering", "file", rc.InputPath, "strategy", s.Kind.String(), "runtime", s.Runtime)

	switch s.Kind {
	case StrategySubstitute:
		if err := SubstituteFile(rc); err != nil {
			return errs.RenderFailed(rc.InputPath, err)
		}
		return nil

	case StrategyBuiltinEngine, StrategyCustomEngine:
		script := s.Script
		if s.Kind == StrategyBuiltinEngine {
			p, err := d.scripts.Path(s.Script)
			if err != nil {
				return errs.RenderFailed(rc.InputPath, err)
			}
			script = p
		}

		err := d.engines.Render(ctx, engine.Invocation{
			Runtime:   s.Runtime,
			Script:    script,
			Input:     rc.InputPath,
			Output:    rc.OutputPath,
			Variables: rc.Variables,
		})
		if err != nil && !errors.Is(err, errs.ErrRenderFailed) {
			err = errs.RenderFailed(rc.InputPath, err)
		}
		return err
	}

	return errs.RenderFailed(rc.InputPath, fmt.Errorf("unknown strategy %d", s.Kind))
}
