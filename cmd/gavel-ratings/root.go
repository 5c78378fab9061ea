package main

import (
	"context"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "gavel-ratings",
		Short: "Faculty rating extraction and aggregation service",
		Long: "gavel-ratings turns free-form student feedback into structured faculty ratings,\n" +
			"keeps per-faculty aggregates current and serves them over HTTP.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $GAVEL_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAnalyzeCmd(opts),
		newConsolidateCmd(opts),
		newRecomputeCmd(opts),
		newCleanupCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// execute runs the command line args against a fresh command tree.
func execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
