package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/review-tuner/internal/config"
)

func newSettingsCmd(getCfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, replace, roll back and list versions of the global settings",
	}

	show := &cobra.Command{
		Use:   "show [version-id]",
		Short: "Print the active (or a given) version as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.store.Active(ctx)
			if len(args) == 1 {
				v, err = a.store.GetVersion(ctx, args[0])
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# version %s (parent %s) %s\n", v.VersionID, v.ParentID, v.Reason)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(v.Settings); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	var reason string
	set := &cobra.Command{
		Use:   "set <file.yaml>",
		Short: "Commit a YAML parameter set as the new global version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := config.LoadSettingsFile(args[0], a.schema)
			if err != nil {
				return err
			}
			id, err := a.store.SetGlobal(ctx, p, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "global settings version %s\n", id)
			return nil
		},
	}
	set.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the version")

	rollback := &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Point the global settings at an earlier version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.store.Rollback(ctx, args[0])
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List settings versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, getCfg())
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.store.Active(ctx)
			if err != nil {
				return err
			}
			versions, err := a.store.ListVersions(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  %-36s| %-36s| %-20s| %s\n", "Version", "Parent", "Created", "Reason")
			for _, v := range versions {
				mark := " "
				if v.VersionID == active.VersionID {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-36s| %-36s| %-20s| %s\n",
					mark, v.VersionID, v.ParentID, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Reason)
			}
			return nil
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum rows")

	cmd.AddCommand(show, set, rollback, history)
	return cmd
}
