package cmd

import (
	"github.com/spf13/cobra"
)

// newRunCmd creates the 'run' subcommand: a one-shot scrape cycle that
// exits non-zero when any source fails.
func newRunCmd() *cobra.Command {
	var parallel bool

	cmd := &cobra.Command{
		Use:   "run [source]",
		Short: "Run one scrape cycle and exit",
		Long: `Scrapes the named source, or every enabled source when no argument
(or "all") is given. The exit status is non-zero if any source in the
cycle failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != "all" {
				return a.Orchestrator.RunSpecific(cmd.Context(), args[0])
			}
			return a.Orchestrator.RunAll(cmd.Context(), parallel)
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "scrape sources concurrently")
	return cmd
}
