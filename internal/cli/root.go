// Package cli provides the command-line interface for forge.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/forge/internal/config"
	"github.com/jmylchreest/forge/internal/executor"
	"github.com/jmylchreest/forge/internal/logging"
	"github.com/jmylchreest/forge/internal/plugin/manager"
	"github.com/jmylchreest/forge/internal/render/engine"
	"github.com/jmylchreest/forge/internal/version"
)

// app carries the global flags and the dependencies resolved from them.
// Every command reads its configuration from here rather than from the
// environment.
type app struct {
	home          string
	engineTimeout string
	verbose       bool
	quiet         bool

	cfg    *config.Config
	logger hclog.Logger
	runner executor.ProcessRunner

	getwd func() (string, error)
	now   func() time.Time
}

// NewRootCmd builds the forge command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{
		runner: executor.NewRealProcessRunner(),
		getwd:  os.Getwd,
		now:    time.Now,
	})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "forge",
		Short: "Project scaffolding from plugin templates",
		Long: `forge scaffolds projects from templates described by plugins.

A plugin names a project type, where its templates live and how to detect it.
Each template file is rendered by an engine chosen by its extension:

  .erb    ruby
  .jinja  python3
  .ejs    node
  .hbs    node

A plugin may delegate further extensions to its own renderer. Every other file
has {{key}} placeholders replaced with variable values.`,
		Version:      version.Short(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.home, "home", "", "plugin state directory (env "+config.EnvHome+")")
	flags.StringVar(&a.engineTimeout, "engine-timeout", "", "timeout per external engine run, 0 disables (env "+config.EnvEngineTimeout+", default 5m)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-error output")

	root.AddCommand(
		newInitCmd(a),
		newGenerateCmd(a),
		newRunCmd(a),
		newPluginsCmd(a),
		newEnginesCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup resolves configuration and logging once the flags are parsed.
func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(config.Options{Home: a.home, EngineTimeout: a.engineTimeout})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Options{Verbose: a.verbose, Quiet: a.quiet, Output: stderr})
	a.logger.Debug("configuration", "home", cfg.Home, "engine_timeout", cfg.EngineTimeout)
	return nil
}

func (a *app) manager() *manager.Manager {
	return manager.NewBuilder(a.cfg.IndexPath(), a.cfg.PluginsDir()).
		WithLogger(a.logger.Named("plugins")).
		WithClock(a.now).
		Build()
}

func (a *app) scripts() *engine.Scripts {
	cache := filepath.Join(a.cfg.CacheDir(), "engines", version.Short())
	return engine.NewScripts(a.cfg.EnginesDir(), cache, a.logger.Named("engines"))
}

// projectDir resolves dir against the working directory.
func (a *app) projectDir(dir string) (string, error) {
	if dir == "" {
		wd, err := a.getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}
	return filepath.Abs(dir)
}

// addProjectFlags registers the --plugin and --dir flags shared by commands
// that act on a project.
func addProjectFlags(f *pflag.FlagSet, plugin, dir *string, pluginDefault string) {
	f.StringVarP(plugin, "plugin", "p", "", "plugin name or descriptor path (default: "+pluginDefault+")")
	f.StringVarP(dir, "dir", "C", "", "project directory (default: current directory)")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
