package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/review-tuner/internal/config"
)

func newEntityCmd(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect per-entity learning records",
	}

	var threshold int
	show := &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show one entity's record and its chronic weak points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := getCfg()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.learner.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("entity %q has no record", args[0])
			}
			if threshold <= 0 {
				threshold = cfg.ChronicThreshold
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"record":  rec,
				"chronic": rec.Chronic(threshold),
			})
		},
	}
	show.Flags().IntVar(&threshold, "threshold", 0, "chronic threshold (default: TUNER_CHRONIC_THRESHOLD)")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List entities by most recent attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.store.ListEntities(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s| %-8s| %-8s| %-8s| %s\n", "Entity", "Attempts", "Avg", "Best", "Last")
			for _, r := range recs {
				fmt.Fprintf(out, "%-30s| %-8d| %-8.1f| %-8.1f| %.1f\n", r.EntityID, r.AttemptCount, r.AvgScore, r.BestScore, r.LastScore)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	cmd.AddCommand(show, list)
	return cmd
}
