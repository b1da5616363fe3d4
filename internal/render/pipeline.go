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
	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/security"
	"github.com/jmylchreest/forge/internal/variables"
)

// Request describes one scaffolding run.
type Request struct {
	TemplateRoot string
	OutputRoot   string
	Variables    map[string]any
	// Force allows overwriting files that already exist under OutputRoot.
	Force bool
}

// RenderedFile is one file written by a run.
type RenderedFile struct {
	RelativePath string
	OutputPath   string
	Strategy     Strategy
}

// Result summarises a successful run.
type Result struct {
	Files        []RenderedFile
	Requirements Requirements
}

// Pipeline renders a template tree sequentially. It is not safe for
// concurrent use on the same output directory.
type Pipeline struct {
	resolver   *Resolver
	prober     *Prober
	dispatcher *Dispatcher
	logger     hclog.Logger
}

// NewPipeline wires the pipeline for the active plugin, which may be nil.
func NewPipeline(p *plugin.Descriptor, prober *Prober, dispatcher *Dispatcher, logger hclog.Logger) *Pipeline {
	return &Pipeline{
		resolver:   NewResolver(p),
		prober:     prober,
		dispatcher: dispatcher,
		logger:     logging.OrNull(logger),
	}
}

// Run enumerates req.TemplateRoot, verifies every runtime the files need,
// refuses to overwrite existing outputs unless req.Force is set, then
// renders each file in order. The first failure aborts the run; files
// already written are left in place.
func (pl *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	vars, err := variables.Normalize(req.Variables)
	if err != nil {
		return nil, err
	}

	outRoot, err := filepath.Abs(req.OutputRoot)
	if err != nil {
		return nil, errs.IO("resolve output directory", req.OutputRoot, err)
	}

	files, err := Enumerate(req.TemplateRoot)
	if err != nil {
		return nil, err
	}
	if insideTemplateRoot(outRoot, req.TemplateRoot) {
		return nil, errs.InvalidInput("generate", req.OutputRoot, errors.New("output directory must not be inside the template root"))
	}

	strategies := pl.resolver.Strategies(files)
	reqs := RequirementsOf(strategies)
	pl.logger.Debug("resolved templates", "files", len(files), "runtimes", []string(reqs))

	// Pre-flight: nothing is written until every runtime answered.
	if err := pl.prober.Verify(ctx, reqs); err != nil {
		return nil, err
	}

	outputs := make([]string, len(files))
	for i, f := range files {
		outputs[i] = filepath.Join(outRoot, f.RelativePath)
	}
	if !req.Force {
		if err := checkExisting(outputs); err != nil {
			return nil, err
		}
	}

	res := &Result{Requirements: reqs}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, errs.RenderFailed(f.AbsolutePath, fmt.Errorf("interrupted: %w", err))
		}

		rc := Context{InputPath: f.AbsolutePath, OutputPath: outputs[i], Variables: vars}
		if err := pl.dispatcher.Dispatch(ctx, strategies[i], rc); err != nil {
			return res, err
		}
		res.Files = append(res.Files, RenderedFile{
			RelativePath: f.RelativePath,
			OutputPath:   outputs[i],
			Strategy:     strategies[i],
		})
		pl.logger.Debug("rendered", "file", f.RelativePath, "strategy", strategies[i].Kind.String())
	}

	pl.logger.Info("rendered templates", "files", len(res.Files), "output", outRoot)
	return res, nil
}

// insideTemplateRoot reports whether outRoot lies under the template root,
// either as given or with symlinks resolved.
func insideTemplateRoot(outRoot, templateRoot string) bool {
	root, err := filepath.Abs(templateRoot)
	if err != nil {
		return false
	}
	if security.ValidateWithin(outRoot, root) == nil {
		return true
	}
	resolved, err := filepath.EvalSymlinks(root)
	return err == nil && security.ValidateWithin(outRoot, resolved) == nil
}

// checkExisting fails with AlreadyExists naming the first output that exists.
func checkExisting(outputs []string) error {
	var existing []string
	for _, out := range outputs {
		if _, err := os.Lstat(out); err == nil {
			existing = append(existing, out)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	err := errs.AlreadyExists("render", existing[0])
	if len(existing) > 1 {
		err.Err = fmt.Errorf("%d files would be overwritten (use --force)", len(existing))
	} else {
		err.Err = errors.New("use --force to overwrite")
	}
	return err
}
