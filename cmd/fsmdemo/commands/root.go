// Package commands implements the fsmdemo command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amp-labs/amp-fsm/cli"
	"github.com/amp-labs/amp-fsm/config"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/shutdown"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/spf13/cobra"
)

const appName = "fsmdemo"

// app carries what every subcommand shares.
type app struct {
	cfg      *config.Config
	prompter *cli.Prompter
	shutdown *shutdown.Handler

	jsonLogs bool
	verbose  bool
	total    int
	limit    int
}

// Execute runs the root command. Cleanup that must outlive the command,
// such as flushing telemetry, is registered with handler.
func Execute(ctx context.Context, version string, handler *shutdown.Handler) error {
	a := &app{prompter: cli.NewPrompter(), shutdown: handler}

	return newRootCommand(a, version).ExecuteContext(ctx)
}

func newRootCommand(a *app, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Drive an order workflow state machine",
		Long: `fsmdemo drives an order workflow (draft, submitted, approved, shipped,
delivered, with rejection and cancellation) through the state machine runtime.

Stimuli can be chosen interactively or scripted, the machine can be saved to
and restored from snapshot files, validated, and rendered as a diagram.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.jsonLogs, "json", false, "log in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&a.total, "total", 100, "order total checked by the approval guard")
	rootCmd.PersistentFlags().IntVar(&a.limit, "limit", 1000, "highest total that can be approved")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))
	rootCmd.AddCommand(newGraphCommand(a))
	rootCmd.AddCommand(newHistoryCommand(a))

	return rootCmd
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if a.jsonLogs {
		cfg.Log.JSON = true
	}

	if a.verbose {
		cfg.Log.Level = slog.LevelDebug
	}

	if err := telemetry.Initialize(ctx, &cfg.Telemetry); err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	a.shutdown.BeforeShutdown(telemetry.Shutdown)

	logger.ConfigureLogging(ctx, appName, cfg.Log, telemetry.SlogHandler())

	a.cfg = cfg

	return nil
}

func (a *app) order() order {
	return order{total: a.total, limit: a.limit}
}
