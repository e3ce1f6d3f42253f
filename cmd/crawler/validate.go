package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"match-crawler/internal/riot"
)

func newValidateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Checks the configured API key against the platform status endpoint",
		Args:  cobra.NoArgs,
		RunE:  runValidateKey,
	}
}

func runValidateKey(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.cfg.RequireKey(); err != nil {
		return err
	}

	platform, valid, err := checkKey(cmd.Context(), a)
	if err != nil {
		return fmt.Errorf("validate key on %s: %w", platform, err)
	}
	if !valid {
		return fmt.Errorf("validate key on %s: %w", platform, riot.ErrCredentialRejected)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "API key accepted by %s\n", platform)
	return nil
}

// checkKey asks the first configured platform whether the key is valid.
func checkKey(ctx context.Context, a *app) (string, bool, error) {
	endpoints := riot.NewEndpoints(a.cfg.API.HostTemplate, a.cfg.API.Queue, a.cfg.API.RankedQueueID)
	validator := riot.NewKeyValidator(endpoints, riot.WithTimeout(a.cfg.API.Timeout))
	platform := a.cfg.Crawl.Regions[0].ID

	valid, err := validator.ValidateKey(ctx, platform, a.cfg.API.Key)
	return platform, valid, err
}

// preflight runs checkKey before any crawling. A rejected key is fatal; an
// inconclusive check is logged and the run proceeds.
func preflight(ctx context.Context, a *app) error {
	platform, valid, err := checkKey(ctx, a)
	if err != nil {
		a.logger.Warn("Could not validate API key, proceeding",
			zap.String("platform", platform),
			zap.Error(err),
		)
		return nil
	}
	if !valid {
		return fmt.Errorf("pre-flight check on %s: %w", platform, riot.ErrCredentialRejected)
	}
	a.logger.Info("API key accepted", zap.String("platform", platform))
	return nil
}
