package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/review-tuner/internal/abtest"
	"github.com/danielpatrickdp/review-tuner/internal/config"
	"github.com/danielpatrickdp/review-tuner/internal/logging"
	"github.com/danielpatrickdp/review-tuner/internal/params"
)

func newABTestCmd(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abtest",
		Short: "Create, run and apply A/B tests between two settings variants",
	}

	// withManager opens the app and hands a wired Manager to fn.
	withManager := func(cmd *cobra.Command, fn func(a *app, m *abtest.Manager) error) error {
		a, err := openApp(cmd.Context(), getCfg())
		if err != nil {
			return err
		}
		defer a.Close()
		m, err := a.manager()
		if err != nil {
			return err
		}
		return fn(a, m)
	}

	var (
		name, typ, entity string
		aPath, bPath      string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a pending test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(a *app, m *abtest.Manager) error {
				ctx := cmd.Context()
				global, err := a.store.GetGlobal(ctx)
				if err != nil {
					return err
				}
				// A variant file overlays the global settings, so it only
				// needs the entries under test.
				variant := func(path string) (params.ParameterSet, error) {
					if path == "" {
						return global.Clone(), nil
					}
					overlay, err := config.LoadSettingsFile(path, a.schema)
					if err != nil {
						return params.ParameterSet{}, err
					}
					out := global.Clone()
					for _, p := range overlay.Paths() {
						out.SetPath(p, overlay.GetPath(p))
					}
					return out, nil
				}
				va, err := variant(aPath)
				if err != nil {
					return err
				}
				vb, err := variant(bPath)
				if err != nil {
					return err
				}

				t, err := m.Create(ctx, abtest.CreateRequest{
					Name:     name,
					Type:     typ,
					EntityID: entity,
					VariantA: va,
					VariantB: vb,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "test name")
	create.Flags().StringVar(&typ, "type", "", "persona, tone, structure, length or combined")
	create.Flags().StringVar(&entity, "entity", "", "entity (hotel) both variants generate for")
	create.Flags().StringVar(&aPath, "a", "", "YAML overlay for variant A")
	create.Flags().StringVar(&bPath, "b", "", "YAML overlay for variant B")

	byID := func(use, short string, fn func(cmd *cobra.Command, a *app, m *abtest.Manager, id string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <test-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(a *app, m *abtest.Manager) error {
					return fn(cmd, a, m, args[0])
				})
			},
		}
	}

	run := byID("run", "Run a pending test", func(cmd *cobra.Command, _ *app, m *abtest.Manager, id string) error {
		t, err := m.Run(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	})
	retry := byID("retry", "Re-run a failed or scoreless test", func(cmd *cobra.Command, _ *app, m *abtest.Manager, id string) error {
		t, err := m.Retry(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	})
	apply := byID("apply", "Promote the winner's persona, tone, structure and length into the global settings",
		func(cmd *cobra.Command, _ *app, m *abtest.Manager, id string) error {
			version, err := m.ApplyWinner(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "global settings version %s\n", version)
			return nil
		})
	del := byID("delete", "Delete a test", func(cmd *cobra.Command, _ *app, m *abtest.Manager, id string) error {
		return m.Delete(cmd.Context(), id)
	})
	get := byID("get", "Show a test and its status history", func(cmd *cobra.Command, a *app, m *abtest.Manager, id string) error {
		ctx := cmd.Context()
		t, err := m.Get(ctx, id)
		if err != nil {
			return err
		}
		events, err := logging.ReadEvents(ctx, a.store.DB(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"test": t, "events": events})
	})

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, func(_ *app, m *abtest.Manager) error {
				tests, err := m.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-36s| %-24s| %-10s| %-7s| %-7s| %s\n", "ID", "Name", "Status", "A", "B", "Winner")
				for _, t := range tests {
					fmt.Fprintf(out, "%-36s| %-24s| %-10s| %-7s| %-7s| %s\n",
						t.ID, t.Name, t.Status, score(t.ScoreA), score(t.ScoreB), winnerOf(t))
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 = all)")

	cmd.AddCommand(create, run, retry, apply, del, get, list)
	return cmd
}

func score(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *s)
}

func winnerOf(t abtest.Test) string {
	if t.Winner == nil {
		return "-"
	}
	return string(*t.Winner)
}
