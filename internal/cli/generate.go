package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/manifest"
	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/render"
	"github.com/jmylchreest/forge/internal/render/engine"
	"github.com/jmylchreest/forge/internal/template"
	"github.com/jmylchreest/forge/internal/variables"
)

type generateOptions struct {
	out       string
	templates string
	plugin    string
	template  string
	dir       string
	vars      []string
	varsFiles []string
	force     bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Render a template tree into an output directory",
		Long: `Render every file of a template tree into --out, keeping relative paths.

The template tree is --templates when given. Otherwise it is the template
recorded by "forge init" in .forge/, or a template of the active plugin fetched
for this run.

Before anything is written, every interpreter the tree needs is checked with
"<runtime> --version". Existing output files are only replaced with --force.

Variables start with project_name (the output directory name), plugin_name and
plugin_version, then --vars-file documents (JSON, YAML, TOML or .env) in
order, then --var assignments:

  --var name=value     string value
  --var count:=3       JSON value

Examples:
  forge generate --out ./shop
  forge generate --out ./shop --templates ./my-templates --var owner=acme
  forge generate --out ./shop --vars-file vars.yaml --var replicas:=3 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", "output directory (required)")
	f.StringVar(&opts.templates, "templates", "", "template directory (overrides the plugin's templates)")
	addProjectFlags(f, &opts.plugin, &opts.dir, "manifest, then detect")
	f.StringVarP(&opts.template, "template", "t", "", "template name or locator")
	f.StringArrayVar(&opts.vars, "var", nil, "variable assignment key=value or key:=json (repeatable)")
	f.StringArrayVar(&opts.varsFiles, "vars-file", nil, "variables file (repeatable)")
	f.BoolVarP(&opts.force, "force", "f", false, "overwrite existing output files")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, opts generateOptions) error {
	ctx := cmd.Context()
	dir, err := a.projectDir(opts.dir)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(opts.out)
	if err != nil {
		return errs.IO("resolve output directory", opts.out, err)
	}

	p, err := a.resolvePlugin(opts.plugin, dir, true)
	if err != nil {
		// A template directory can be rendered without a plugin.
		if opts.templates == "" || opts.plugin != "" || !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		a.logger.Debug("rendering without a plugin", "reason", err)
		p = nil
	}

	root, cleanup, err := a.templateRoot(cmd, p, dir, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	vars, err := a.buildVariables(p, out, opts)
	if err != nil {
		return err
	}

	adapter := engine.NewAdapter(a.runner,
		engine.WithTimeout(a.cfg.EngineTimeout),
		engine.WithLogger(a.logger.Named("engine")),
	)
	pipeline := render.NewPipeline(p,
		render.NewProber(a.runner, a.cfg.ProbeTimeout, a.logger.Named("probe")),
		render.NewDispatcher(adapter, a.scripts(), a.logger.Named("dispatch")),
		a.logger.Named("render"),
	)

	res, err := pipeline.Run(ctx, render.Request{
		TemplateRoot: root,
		OutputRoot:   out,
		Variables:    vars,
		Force:        opts.force,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if a.verbose {
		tb := newTable("FILE", "ENGINE")
		for _, f := range res.Files {
			tb.add(f.RelativePath, describeStrategy(f.Strategy))
		}
		if err := tb.render(w); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Rendered %d files into %s\n", len(res.Files), out)
	return nil
}

// templateRoot locates the template tree for a run. cleanup removes any
// temporary copy and is never nil on success.
func (a *app) templateRoot(cmd *cobra.Command, p *plugin.Descriptor, dir string, opts generateOptions) (string, func(), error) {
	noop := func() {}
	if opts.templates != "" {
		return opts.templates, noop, nil
	}

	if manifest.Exists(dir) {
		m, err := manifest.Read(dir)
		if err != nil {
			return "", nil, err
		}
		if p == nil || m.Plugin == p.Name {
			if t, ok := m.Template(opts.template); ok {
				path := manifest.TemplateDir(dir, t.Name)
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					a.logger.Debug("using template from manifest", "template", t.Name, "path", path)
					return path, noop, nil
				}
				a.logger.Warn("template recorded in manifest is missing, fetching again", "template", t.Name, "path", path)
			}
		}
	}

	if p == nil {
		return "", nil, errs.NotFound("select template", dir, errors.New("no plugin; use --templates"))
	}
	name, locator, err := pickTemplate(p, opts.template)
	if err != nil {
		return "", nil, err
	}
	src, err := template.Resolve(name, locator, p.Dir)
	if err != nil {
		return "", nil, err
	}
	acquirer := template.NewAcquirer(a.runner, a.logger.Named("template"))
	return acquirer.Open(cmd.Context(), src, filepath.Join(a.cfg.CacheDir(), "templates"))
}

func (a *app) buildVariables(p *plugin.Descriptor, out string, opts generateOptions) (map[string]any, error) {
	var pluginName, pluginVersion string
	if p != nil {
		pluginName, pluginVersion = p.Name, p.Version
	}
	layers := []map[string]any{variables.Defaults(filepath.Base(out), pluginName, pluginVersion)}

	for _, path := range opts.varsFiles {
		vars, err := variables.LoadFile(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, vars)
	}

	assigned, err := variables.ParseAssignments(opts.vars)
	if err != nil {
		return nil, err
	}
	layers = append(layers, assigned)
	return variables.Merge(layers...), nil
}

func describeStrategy(s render.Strategy) string {
	if !s.External() {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s (%s)", s.Kind.String(), s.Runtime)
}
