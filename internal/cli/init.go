package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/forge/internal/config"
	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/manifest"
	"github.com/jmylchreest/forge/internal/template"
)

type initOptions struct {
	plugin   string
	template string
	dir      string
	force    bool
}

func newInitCmd(a *app) *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise a project with a plugin and template",
		Long: `Initialise the current project for forge.

The plugin is taken from --plugin or detected from the project files. The
template is --template (a template name declared by the plugin, or a git URL,
directory or archive), otherwise the plugin's "default" template, otherwise
its first template by name.

The template is fetched into .forge/templates/<name> and recorded in
.forge/manifest.json.

Examples:
  forge init
  forge init --plugin go-service --template api
  forge init --template https://github.com/acme/go-service-template.git`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInit(cmd, opts)
		},
	}

	addProjectFlags(cmd.Flags(), &opts.plugin, &opts.dir, "detect")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template name or locator")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing manifest and template")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, opts initOptions) error {
	dir, err := a.projectDir(opts.dir)
	if err != nil {
		return err
	}
	if manifest.Exists(dir) && !opts.force {
		e := errs.AlreadyExists("init", config.ManifestPath(dir))
		e.Err = errors.New("use --force to overwrite")
		return e
	}

	p, err := a.resolvePlugin(opts.plugin, dir, false)
	if err != nil {
		return err
	}

	name, locator, err := pickTemplate(p, opts.template)
	if err != nil {
		return err
	}
	src, err := template.Resolve(name, locator, p.Dir)
	if err != nil {
		return err
	}

	acquirer := template.NewAcquirer(a.runner, a.logger.Named("template"))
	if _, err := acquirer.Fetch(cmd.Context(), src, manifest.TemplateDir(dir, name), opts.force); err != nil {
		return err
	}

	m := &manifest.Manifest{
		Plugin:    p.Name,
		Templates: []manifest.Template{{Name: name, URL: locator}},
		Created:   a.now().UTC(),
	}
	if err := manifest.Write(dir, m, opts.force); err != nil {
		return err
	}

	a.logger.Info("initialised project", "plugin", p.Name, "template", name, "source", src.Kind.String())
	fmt.Fprintf(cmd.OutOrStdout(), "Initialised %s with plugin %s and template %s\n", config.ManifestPath(dir), p.Name, name)
	return nil
}
