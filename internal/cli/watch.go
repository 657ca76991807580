package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedpol/internal/report"
)

func newWatchCmd() *cobra.Command {
	var (
		flagServer   string
		flagInterval time.Duration
		flagTop      int
		flagCount    int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a running engine and render its live statistics",
		Long:  "Fetches the live counter snapshot from a running engine at a fixed interval and renders the table after each fetch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(flagServer, logger)
			out := cmd.OutOrStdout()

			for i := 0; flagCount <= 0 || i < flagCount; i++ {
				if i > 0 {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(flagInterval):
					}
				}

				payload, err := client.Stats()
				if err != nil {
					return err
				}

				rep := report.Build(payload.Processes, flagTop)
				rep.Policy = payload.Policy
				rep.RunID = payload.Run
				rep.Render(out)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagServer, "server", defaultServer(), "Engine URL (or SCHEDPOL_SERVER env)")
	cmd.Flags().DurationVar(&flagInterval, "interval", 2*time.Second, "Poll interval")
	cmd.Flags().IntVarP(&flagTop, "top", "n", 0, "Show only the top N processes by CPU time (0 = all)")
	cmd.Flags().IntVar(&flagCount, "count", 0, "Stop after this many fetches (0 = forever)")

	return cmd
}
