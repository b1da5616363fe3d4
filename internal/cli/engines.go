package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/render"
	"github.com/jmylchreest/forge/internal/render/engine"
)

func newEnginesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "Inspect and customise the built-in render engines",
		Long: `The built-in engines are small scripts run by an interpreter. forge ships
them embedded; a file of the same name in <home>/engines replaces the shipped
copy. "forge engines dump" writes the shipped scripts there as a starting
point.`,
	}
	cmd.AddCommand(newEnginesListCmd(a), newEnginesDumpCmd(a))
	return cmd
}

func newEnginesListCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := a.scripts().List()
			if err != nil {
				return err
			}
			overrides := make(map[string]string, len(infos))
			for _, info := range infos {
				if info.HasOverride {
					overrides[info.Name] = info.OverridePath
				}
			}

			prober := render.NewProber(a.runner, a.cfg.ProbeTimeout, a.logger.Named("probe"))
			headers := []string{"EXTENSION", "RUNTIME", "SCRIPT", "SOURCE"}
			if check {
				headers = append(headers, "STATUS")
			}
			tb := newTable(headers...)
			for _, b := range engine.Builtins() {
				source := "embedded"
				if p, ok := overrides[b.Script]; ok {
					source = p
				}
				row := []string{"." + b.Ext, b.Runtime, b.Script, source}
				if check {
					status := "ok"
					if err := prober.Verify(cmd.Context(), render.Requirements{b.Runtime}); err != nil {
						status = "unavailable"
					}
					row = append(row, status)
				}
				tb.add(row...)
			}
			return tb.render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "probe each runtime with --version")
	return cmd
}

func newEnginesDumpCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "dump [script]",
		Short: "Write the embedded engine scripts to the override directory",
		Long: `Write the embedded engine scripts to <home>/engines so they can be edited.
Existing files are kept unless --force is given.

Examples:
  forge engines dump
  forge engines dump render_erb.rb --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scripts := a.scripts()
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				path, err := scripts.Dump(args[0], force)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Wrote %s\n", path)
				return nil
			}

			dumped, err := scripts.DumpAll(force)
			for _, path := range dumped {
				fmt.Fprintf(w, "Wrote %s\n", path)
			}
			if err != nil && errors.Is(err, errs.ErrAlreadyExists) {
				return fmt.Errorf("some scripts already exist (use --force to overwrite): %w", err)
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing scripts")
	return cmd
}
