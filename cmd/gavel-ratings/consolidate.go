package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

func newConsolidateCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "consolidate [name]",
		Short: "Merge faculty records that share a name",
		Long: "consolidate merges every record named exactly NAME into the record with the\n" +
			"lowest id. With --all every duplicated name is consolidated.",
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, args []string, a *app) error {
			switch {
			case all && len(args) > 0:
				return errors.New("pass either a name or --all, not both")
			case all:
				results, err := a.consolidator.ConsolidateAll(cmd.Context())
				if err != nil {
					return err
				}
				if results == nil {
					results = []application.ConsolidationResult{}
				}
				return printJSON(cmd, results)
			case len(args) == 1:
				res, err := a.consolidator.Consolidate(cmd.Context(), domain.NormalizeName(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			default:
				return errors.New("a faculty name or --all is required")
			}
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "consolidate every duplicated name")
	return cmd
}
