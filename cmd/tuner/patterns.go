package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/review-tuner/internal/config"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
)

// seedEntry is one row of a pattern seed file:
//
//	- type: h_boost
//	  key: scene
//	  value: S3
//	  success_rate: 90
type seedEntry struct {
	Type        string  `yaml:"type"`
	Key         string  `yaml:"key"`
	Value       string  `yaml:"value"`
	SuccessRate float64 `yaml:"success_rate"`
	Inactive    bool    `yaml:"inactive"`
}

func loadSeeds(path string) ([]patterns.SuccessPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make([]patterns.SuccessPattern, 0, len(entries))
	for i, e := range entries {
		if e.Type == "" || e.Key == "" {
			return nil, fmt.Errorf("seed %d: type and key are required", i)
		}
		out = append(out, patterns.SuccessPattern{
			PatternType:  patterns.PatternType(e.Type),
			PatternKey:   e.Key,
			PatternValue: e.Value,
			SuccessRate:  e.SuccessRate,
			IsActive:     !e.Inactive,
		})
	}
	return out, nil
}

func newPatternsCmd(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List, seed and toggle success patterns",
	}

	var (
		typ   string
		all   bool
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List patterns, best average score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			var rows []patterns.SuccessPattern
			if all {
				rows, err = a.store.ListPatterns(ctx, patterns.Filter{Type: patterns.PatternType(typ), Limit: limit})
			} else {
				rows, err = a.tracker.Ranked(ctx, patterns.PatternType(typ), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-5s| %-9s| %-32s| %-10s| %-6s| %-7s| %-6s| %s\n", "ID", "Type", "Key", "Value", "Uses", "Avg", "Rate", "Active")
			for _, p := range rows {
				fmt.Fprintf(out, "%-5d| %-9s| %-32s| %-10s| %-6d| %-7.1f| %-6.0f| %v\n",
					p.ID, p.PatternType, p.PatternKey, p.PatternValue, p.UsageCount, p.AvgScoreImpact, p.SuccessRate, p.IsActive)
			}
			return nil
		},
	}
	list.Flags().StringVar(&typ, "type", "", "pattern type (h_boost, q_boost, c_boost, combo)")
	list.Flags().BoolVar(&all, "all", false, "include patterns that are not yet consumable")
	list.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")

	seed := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Insert boost or combo rows that do not exist yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := loadSeeds(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tracker.Seed(ctx, seeds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d patterns\n", len(seeds))
			return nil
		},
	}

	toggle := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <pattern-id>",
			Short: fmt.Sprintf("Mark a pattern active=%v", active),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid pattern id %q", args[0])
				}
				ctx := cmd.Context()
				a, err := openApp(ctx, getCfg())
				if err != nil {
					return err
				}
				defer a.Close()
				return a.tracker.SetActive(ctx, id, active)
			},
		}
	}

	cmd.AddCommand(list, seed, toggle("activate", true), toggle("deactivate", false))
	return cmd
}
