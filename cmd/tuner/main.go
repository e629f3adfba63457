// Command tuner drives the review-tuner engine: optimize and record attempts,
// inspect learning, manage success patterns, run A/B tests and version the
// global settings.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/review-tuner/internal/config"
	"github.com/danielpatrickdp/review-tuner/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "tuner",
		Short:         "Adaptive optimization and learning for hotel-review generation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			loaded, err := config.Load(files...)
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Setup(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load before the environment (default .env)")

	// Subcommands resolve cfg lazily, after PersistentPreRunE has run.
	getCfg := func() *config.Config { return cfg }

	rootCmd.AddCommand(
		newOptimizeCmd(getCfg),
		newRecordCmd(getCfg),
		newEntityCmd(getCfg),
		newPatternsCmd(getCfg),
		newABTestCmd(getCfg),
		newSettingsCmd(getCfg),
	)

	return rootCmd
}
