package cli

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/forge/internal/actions"
)

func newRunCmd(a *app) *cobra.Command {
	var pluginName, dir string
	cmd := &cobra.Command{
		Use:   "run <action>",
		Short: "Run a plugin action in the project",
		Long: `Run the commands a plugin declares for an action, in order, with "sh -c"
in the project directory. The first failing command stops the action.

The commands see FORGE_PLUGIN, FORGE_PLUGIN_VERSION, FORGE_PLUGIN_DIR and
FORGE_PROJECT_DIR in their environment.

Examples:
  forge run build
  forge run test --plugin go-service`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := a.projectDir(dir)
			if err != nil {
				return err
			}
			p, err := a.resolvePlugin(pluginName, projectDir, true)
			if err != nil {
				return err
			}
			r := actions.NewRunner(a.runner, cmd.OutOrStdout(), cmd.ErrOrStderr(), a.logger.Named("actions"))
			return r.Run(cmd.Context(), p, args[0], projectDir)
		},
	}
	addProjectFlags(cmd.Flags(), &pluginName, &dir, "manifest, then detect")
	return cmd
}
