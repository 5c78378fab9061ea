package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-gavel-ratings/infrastructure/persistence/sqlite"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := sqlite.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema migrated: %s\n", a.cfg.Database.DSN)
			return err
		}),
	}
}
