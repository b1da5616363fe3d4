package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/forge/internal/config"
	"github.com/jmylchreest/forge/internal/plugin"
	"github.com/jmylchreest/forge/internal/plugin/manager"
)

func newPluginsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugins",
		Aliases: []string{"plugin"},
		Short:   "Manage installed plugins",
		Long: `Manage the plugins forge knows about.

Plugins are registered from a local directory, a plugin.json file or a local
archive, and copied under the state directory. The index records their
detection priority: when several plugins match a project, the one with the
highest priority (then the earliest installed) is used.`,
	}
	cmd.AddCommand(
		newPluginInstallCmd(a),
		newPluginListCmd(a),
		newPluginRemoveCmd(a),
		newPluginInfoCmd(a),
		newPluginDetectCmd(a),
	)
	return cmd
}

func newPluginInstallCmd(a *app) *cobra.Command {
	var opts manager.InstallOptions
	cmd := &cobra.Command{
		Use:   "install <dir|plugin.json|archive>",
		Short: "Register a local plugin",
		Long: `Register a plugin from a local directory, descriptor file or archive
(.tar.gz, .tar.xz, .tar.bz2, .zip).

Installing the same version again, or an older one, requires --force.

Examples:
  forge plugins install ./plugins/go-service
  forge plugins install go-service-1.2.0.tar.gz --priority 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.manager().Install(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s %s\n", e.Name, e.Version)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "reinstall or downgrade")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "detection priority, higher wins")
	return cmd
}

func newPluginListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed and catalogued plugins",
		Long: `List installed plugins in detection order, followed by plugins listed in
./plugin-list.json that are not installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wd, err := a.getwd()
			if err != nil {
				return err
			}
			rows, err := a.manager().Listings(config.CatalogPath(wd))
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins installed.")
				return nil
			}

			tb := newTable("NAME", "INSTALLED", "AVAILABLE", "PRIORITY", "DESCRIPTION").limit(4, 50)
			for _, r := range rows {
				installed, priority := "-", ""
				if r.Installed {
					installed, priority = r.InstalledVersion, strconv.Itoa(r.Priority)
				}
				available := r.CatalogVersion
				if available == "" {
					available = "-"
				}
				tb.add(r.Name, installed, available, priority, r.Description)
			}
			return tb.render(cmd.OutOrStdout())
		},
	}
}

func newPluginRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove an installed plugin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.manager().Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newPluginInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name|path>",
		Short: "Show a plugin's descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolvePlugin(args[0], "", false)
			if err != nil {
				return err
			}
			printPluginInfo(cmd, p)
			return nil
		},
	}
}

func newPluginDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [dir]",
		Short: "Show which installed plugin matches a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := a.projectDir(dir)
			if err != nil {
				return err
			}
			p, err := a.manager().Detect(root)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Name)
			return nil
		},
	}
}

func printPluginInfo(cmd *cobra.Command, p *plugin.Descriptor) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Name:        %s\n", p.Name)
	fmt.Fprintf(w, "Version:     %s\n", p.Version)
	if p.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", p.Description)
	}
	if p.Dir != "" {
		fmt.Fprintf(w, "Path:        %s\n", p.Dir)
	}

	if len(p.Templates) > 0 {
		fmt.Fprintln(w, "Templates:")
		def, _, _ := p.DefaultTemplate()
		for _, name := range p.TemplateNames() {
			marker := " "
			if name == def {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s %s: %s\n", marker, name, p.Templates[name])
		}
	}
	if p.Detect != nil && len(p.Detect.Files) > 0 {
		fmt.Fprintf(w, "Detect:      %s\n", strings.Join(p.Detect.Files, ", "))
	}
	if len(p.Actions) > 0 {
		fmt.Fprintln(w, "Actions:")
		names := make([]string, 0, len(p.Actions))
		for name := range p.Actions {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(p.Actions[name], " && "))
		}
	}
	if d, ok := p.Renderer(); ok {
		exts := "all non-built-in"
		if len(d.Extensions) > 0 {
			exts = strings.Join(d.Extensions, ", ")
		}
		fmt.Fprintf(w, "Renderer:    %s %s (extensions: %s)\n", d.Runtime, d.Script, exts)
	}
}
