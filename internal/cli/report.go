package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/schedpol/internal/report"
	"github.com/me/schedpol/internal/store"
	"github.com/me/schedpol/pkg/model"
)

func newReportCmd() *cobra.Command {
	var (
		flagDB  string
		flagRun string
		flagTop int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the statistics table of a persisted run",
		Long:  "Reads the statistics database and prints the per-process table for one run (the most recent by default).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(flagDB); err != nil {
				return fmt.Errorf("statistics database %s: %w", flagDB, err)
			}

			st, err := store.NewSQLiteStore(flagDB, logger)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			var run *model.Run
			if flagRun != "" {
				if run, err = st.GetRun(ctx, flagRun); err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("unknown run %q", flagRun)
				}
			} else {
				if run, err = st.LatestRun(ctx); err != nil {
					return err
				}
			}
			if run == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No statistics recorded.")
				return nil
			}

			rows, err := st.ListProcessStats(ctx, run.ID)
			if err != nil {
				return err
			}

			rep := report.Build(rows, flagTop)
			rep.Policy = run.Policy
			rep.RunID = run.ID
			rep.Render(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagDB, "db", "p", defaultDB(), "Statistics database path (or SCHEDPOL_DB env)")
	cmd.Flags().StringVar(&flagRun, "run", "", "Run id (default: most recent run)")
	cmd.Flags().IntVarP(&flagTop, "top", "n", 0, "Show only the top N processes by CPU time (0 = all)")

	return cmd
}
