package render

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/executor"
	"github.com/jmylchreest/forge/internal/logging"
	"github.com/jmylchreest/forge/internal/plugin"
)

// probeArg is passed to every runtime to check it can be launched.
const probeArg = "--version"

// Requirements is the sorted set of distinct runtimes a file set needs.
type Requirements []string

// Resolver maps files to strategies for one active plugin.
type Resolver struct {
	plugin *plugin.Descriptor
}

// NewResolver creates a resolver. p may be nil when no plugin is active.
func NewResolver(p *plugin.Descriptor) *Resolver {
	return &Resolver{plugin: p}
}

// Strategies resolves the strategy of every file, index-aligned with files.
func (r *Resolver) Strategies(files []TemplateFile) []Strategy {
	out := make([]Strategy, len(files))
	for i, f := range files {
		out[i] = ResolveStrategy(f.RelativePath, r.plugin)
	}
	return out
}

// Requirements returns the runtimes needed to render files.
func (r *Resolver) Requirements(files []TemplateFile) Requirements {
	return RequirementsOf(r.Strategies(files))
}

// RequirementsOf collects the runtimes of the external strategies.
func RequirementsOf(strategies []Strategy) Requirements {
	var reqs Requirements
	for _, s := range strategies {
		if s.External() && !slices.Contains(reqs, s.Runtime) {
			reqs = append(reqs, s.Runtime)
		}
	}
	slices.Sort(reqs)
	return reqs
}

// Prober checks that runtimes can be launched.
type Prober struct {
	runner  executor.ProcessRunner
	timeout time.Duration
	logger  hclog.Logger
}

// NewProber creates a prober. A zero timeout leaves probes unbounded.
func NewProber(runner executor.ProcessRunner, timeout time.Duration, logger hclog.Logger) *Prober {
	return &Prober{runner: runner, timeout: timeout, logger: logging.OrNull(logger)}
}

// Verify runs `<runtime> --version` for each requirement in order and
// fails with RuntimeUnavailable on the first launch failure or non-zero
// exit.
func (p *Prober) Verify(ctx context.Context, reqs Requirements) error {
	for _, rt := range reqs {
		if err := p.probe(ctx, rt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prober) probe(ctx context.Context, rt string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := p.runner.Run(ctx, executor.Command{Path: rt, Args: []string{probeArg}})
	if err != nil {
		p.logger.Debug("runtime probe failed", "runtime", rt, "exit_code", res.ExitCode, "error", err)
		return errs.RuntimeUnavailable(rt, err)
	}

	version, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	p.logger.Debug("runtime available", "runtime", rt, "version", version)
	return nil
}
