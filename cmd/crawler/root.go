package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"match-crawler/internal/config"
	"match-crawler/internal/logging"
)

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app carries what every subcommand needs: the run configuration and the
// root logger.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates the root command. Configuration is loaded once, before
// any subcommand runs, and handed down through the command context.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "Collects ranked League of Legends matches into a CSV dataset.",
		Long: `crawler walks the ranked ladder tier by tier, region by region and
division by division, fetches each player's recent solo queue matches and
writes one row per participant, with a 15-minute gold and CS snapshot, to a
CSV file. Restarting resumes from the rows already in that file.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile := config.LoadDotEnv()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			if envFile != "" {
				logger.Debug("Loaded .env", zap.String("path", envFile))
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, &app{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults and CRAWLER_* env vars apply without one)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newLedgerCmd())
	cmd.AddCommand(newValidateKeyCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}
