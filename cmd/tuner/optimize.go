package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/review-tuner/internal/config"
	"github.com/danielpatrickdp/review-tuner/internal/optimizer"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
)

// #region optimize

func newOptimizeCmd(getCfg func() *config.Config) *cobra.Command {
	var (
		entity       string
		analysisPath string
		settingsPath string
		usePatterns  bool
		record       bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Propose settings for the next attempt from an analysis",
		Long: `Runs the chronic, current and (optionally) success-pattern passes over the
given settings, or the active global settings when --settings is omitted, and
prints the proposed settings with the change log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			var current params.ParameterSet
			if settingsPath != "" {
				current, err = config.LoadSettingsFile(settingsPath, a.schema)
			} else {
				current, err = a.store.GetGlobal(ctx)
			}
			if err != nil {
				return err
			}

			an, err := readAnalysis(analysisPath)
			if err != nil {
				return err
			}

			res := a.optimizer.Optimize(ctx, current, &an, optimizer.Options{
				EntityID:           entity,
				UseSuccessPatterns: usePatterns,
				Record:             record,
			})
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "entity (hotel) id")
	cmd.Flags().StringVar(&analysisPath, "analysis", "-", "analysis JSON file, - for stdin")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "YAML settings to start from (default: active global)")
	cmd.Flags().BoolVar(&usePatterns, "patterns", false, "apply the best success-pattern combo")
	cmd.Flags().BoolVar(&record, "record", false, "fold the analysis into learning and success patterns")
	return cmd
}

// #endregion optimize

// #region record

func newRecordCmd(getCfg func() *config.Config) *cobra.Command {
	var (
		entity       string
		analysisPath string
		settingsPath string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an analyzed attempt without optimizing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entity == "" {
				return fmt.Errorf("--entity is required")
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			var used params.ParameterSet
			if settingsPath != "" {
				used, err = config.LoadSettingsFile(settingsPath, a.schema)
			} else {
				used, err = a.store.GetGlobal(ctx)
			}
			if err != nil {
				return err
			}

			an, err := readAnalysis(analysisPath)
			if err != nil {
				return err
			}

			if err := a.learner.RecordAttempt(ctx, entity, an.WeakPoints, an.TotalScore); err != nil {
				return err
			}
			ext, err := a.tracker.Extract(ctx, patterns.Attempt{
				EntityID:   entity,
				TotalScore: an.TotalScore,
				Details:    an.Details,
				Settings:   used,
			})
			if err != nil {
				return err
			}
			rec, err := a.learner.Get(ctx, entity)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"entity":     rec,
				"extraction": ext,
			})
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "entity (hotel) id")
	cmd.Flags().StringVar(&analysisPath, "analysis", "-", "analysis JSON file, - for stdin")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "YAML settings the attempt was generated with (default: active global)")
	return cmd
}

// #endregion record
