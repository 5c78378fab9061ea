package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecomputeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute the cached aggregates of every faculty",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			n, err := a.driver.RecomputeAllFaculty(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "recomputed aggregates for %d faculty\n", n)
			return err
		}),
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts and the latest entries",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			s, err := a.maintenance.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		}),
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicate, test or unwanted reviews",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "dedupe",
			Short: "Delete repeated screenshot analyses, keeping the oldest of each",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
				res, err := a.maintenance.DedupeScreenshotReviews(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}),
		},
		&cobra.Command{
			Use:   "last-screenshot",
			Short: "Delete the most recent screenshot analysis",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
				removed, err := a.maintenance.RemoveLatestScreenshotReview(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, removed)
			}),
		},
		&cobra.Command{
			Use:   "test-data",
			Short: "Delete test_data reviews and faculty left without reviews",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
				res, err := a.maintenance.ClearTestData(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}),
		},
		newClearReviewsCmd(opts),
	)
	return cmd
}

func newClearReviewsCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "all-reviews",
		Short: "Delete every review and reset all aggregates",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, noGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			if !yes {
				return errors.New("refusing to delete every review without --yes")
			}
			res, err := a.maintenance.ClearAllReviews(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every review")
	return cmd
}
