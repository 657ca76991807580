// Package cli implements the schedstats command line tool: offline reports
// from the persisted statistics table and a live view against a running
// engine's HTTP endpoint.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/schedpol/internal/logging"
)

var (
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultServer returns the default engine URL, checking SCHEDPOL_SERVER first.
func defaultServer() string {
	if s := os.Getenv("SCHEDPOL_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// defaultDB returns the default database path, checking SCHEDPOL_DB first.
func defaultDB() string {
	if p := os.Getenv("SCHEDPOL_DB"); p != "" {
		return p
	}
	return "schedpol.db"
}

// NewRootCmd creates the root cobra command for the schedstats tool.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedstats",
		Short: "schedstats — per-process scheduling statistics",
		Long:  "schedstats renders the per-process statistics recorded by a scheduling run, either from the persisted table or live from a running engine.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newReportCmd(),
		newWatchCmd(),
	)

	return root
}
