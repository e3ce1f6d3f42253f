package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"match-crawler/internal/collector"
	"match-crawler/internal/config"
	"match-crawler/internal/db"
	"match-crawler/internal/discord"
	"match-crawler/internal/logging"
	"match-crawler/internal/metrics"
	"match-crawler/internal/riot"
	"match-crawler/internal/storage"
)

const notifyTimeout = 15 * time.Second

// setupSignals is swapped in tests.
var setupSignals = collector.SetupSignalHandler

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Starts or resumes the ladder crawl",
		Long: `Walks the configured tiers, regions and divisions until the target number
of matches is collected or the ladder is exhausted. Accepted matches are
appended to the output CSV in batches, and to any configured database
mirrors. Interrupting the crawl flushes what is buffered before exiting.`,
		Args: cobra.NoArgs,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.cfg
	logger := a.logger
	if err := cfg.RequireKey(); err != nil {
		return err
	}

	ctx := setupSignals(logger, func(context.Context) {
		logger.Info("Shutting down...")
	})

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, logging.Component(logger, "metrics")); err != nil {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	resume := storage.LoadLedger(cfg.Output.Path, logging.Component(logger, "ledger"))
	report := discord.CrawlReport{
		APIKey:     cfg.API.Key,
		Total:      resume.Ledger.Len(),
		Target:     cfg.Crawl.TargetMatches,
		OutputPath: cfg.Output.Path,
	}
	start := time.Now()

	if err := preflight(ctx, a); err != nil {
		report.Runtime = time.Since(start)
		notify(ctx, cfg.Notify, logger, report, err)
		logger.Error("Crawl aborted", zap.Error(err))
		return err
	}

	mirrors, closeMirrors, err := openMirrors(ctx, cfg.Mirror, logger)
	if err != nil {
		return err
	}
	defer closeMirrors()

	buffer := storage.NewBuffer(
		storage.NewCSVFile(cfg.Output.Path),
		cfg.Crawl.BatchSize,
		logging.Component(logger, "buffer"),
		mirrors...,
	)

	client := riot.NewClient(newRequester(cfg.API, logger), riot.NewEndpoints(cfg.API.HostTemplate, cfg.API.Queue, cfg.API.RankedQueueID))
	extractor := collector.NewExtractor(client, collector.ExtractorConfig{
		MinDurationSeconds: cfg.Crawl.MinDurationSeconds,
		SnapshotMinute:     cfg.Crawl.SnapshotMinute,
	}, logging.Component(logger, "extractor"))

	scheduler := collector.NewScheduler(collector.SchedulerConfig{
		Plan: collector.Plan{
			Tiers:     cfg.Crawl.Tiers,
			Regions:   cfg.Crawl.Regions,
			Divisions: cfg.Crawl.Divisions,
		},
		TargetMatches:  cfg.Crawl.TargetMatches,
		DivisionCap:    cfg.Crawl.DivisionCap,
		HistoryCount:   cfg.Crawl.HistoryCount,
		EmptyPageLimit: cfg.Crawl.EmptyPageLimit,
		PacingDelay:    cfg.Crawl.PacingDelay,
	}, client, extractor, resume.Ledger, buffer, riot.TimerPauser(), logging.Component(logger, "scheduler"))

	logger.Info("Starting crawl",
		zap.Strings("tiers", cfg.Crawl.Tiers),
		zap.Strings("divisions", cfg.Crawl.Divisions),
		zap.Int("regions", len(cfg.Crawl.Regions)),
		zap.Int("target", cfg.Crawl.TargetMatches),
		zap.String("output", cfg.Output.Path),
	)

	summary, runErr := scheduler.Run(ctx)

	report.Accepted = summary.Accepted
	report.Total = summary.Total
	report.Runtime = summary.Elapsed
	report.SinceLastSave = time.Since(buffer.LastFlush())
	notify(ctx, cfg.Notify, logger, report, runErr)

	fields := []zap.Field{
		zap.Int("accepted", summary.Accepted),
		zap.Int("resumed", summary.Resumed),
		zap.Int("total", summary.Total),
		zap.Int("target", cfg.Crawl.TargetMatches),
		zap.Int("segments", len(summary.Segments)),
		zap.Duration("elapsed", summary.Elapsed),
	}

	switch {
	case runErr == nil:
		logger.Info("Crawl finished", fields...)
		return nil
	case errors.Is(runErr, context.Canceled) && !errors.Is(runErr, riot.ErrCredentialRejected):
		logger.Info("Crawl interrupted", fields...)
		return nil
	default:
		logger.Error("Crawl aborted", append(fields, zap.Error(runErr))...)
		return runErr
	}
}

func newRequester(cfg config.APIConfig, logger *zap.Logger) *riot.Requester {
	return riot.NewRequester(cfg.Key,
		riot.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		riot.WithLimiter(riot.NewLimiter(cfg.RequestsPerSecond, cfg.RequestsPerTwoMinutes)),
		riot.WithPauser(riot.TimerPauser()),
		riot.WithDefaultRetryAfter(cfg.DefaultRetryAfter),
		riot.WithLogger(logging.Component(logger, "requester")),
	)
}

// openMirrors connects the configured database mirrors. The returned func
// closes every mirror that was opened.
func openMirrors(ctx context.Context, cfg config.MirrorConfig, logger *zap.Logger) ([]storage.RowSink, func(), error) {
	var (
		sinks   []storage.RowSink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.SQLitePath != "" {
		m, err := db.NewSQLiteMirror(cfg.SQLitePath)
		if err != nil {
			return nil, closeAll, fmt.Errorf("open sqlite mirror: %w", err)
		}
		sinks = append(sinks, m)
		closers = append(closers, func() {
			if err := m.Close(); err != nil {
				logger.Warn("Failed to close sqlite mirror", zap.Error(err))
			}
		})
		logger.Info("Mirroring rows to SQLite", zap.String("path", cfg.SQLitePath))
	}

	if cfg.PostgresDSN != "" {
		m, err := db.NewPostgresMirror(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open postgres mirror: %w", err)
		}
		sinks = append(sinks, m)
		closers = append(closers, m.Close)
		logger.Info("Mirroring rows to PostgreSQL")
	}

	return sinks, closeAll, nil
}

// notify reports the end of a run to Discord when a webhook is configured.
// Only credential rejection and normal completion are reported.
func notify(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger, report discord.CrawlReport, runErr error) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	// The crawl context may already be cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	client := discord.NewWebhookClient(cfg.DiscordWebhookURL)
	var err error
	switch {
	case errors.Is(runErr, riot.ErrCredentialRejected):
		err = client.SendKeyRejected(sendCtx, report)
	case runErr == nil:
		err = client.SendCrawlComplete(sendCtx, report)
	default:
		return
	}
	if err != nil {
		logger.Warn("Failed to send Discord notification", zap.Error(err))
	}
}
