package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vantic-lab/project-vantic/internal/analytics"
	"github.com/vantic-lab/project-vantic/internal/backfill"
	corecfg "github.com/vantic-lab/project-vantic/internal/core/config"
	"github.com/vantic-lab/project-vantic/internal/core/storage/postgres"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
	"github.com/vantic-lab/project-vantic/internal/insights"
	"github.com/vantic-lab/project-vantic/internal/migrations"
	"github.com/vantic-lab/project-vantic/internal/rollup"
	"github.com/vantic-lab/project-vantic/internal/server"
)

func main() {
	configPath := flag.String("config", "vantic.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"series_policies", len(cfg.PolicyLoading.Policies),
		"backfill_enabled", cfg.Backfill.Enabled,
		"rollup_enabled", cfg.Rollup.Enabled,
		"insights_enabled", cfg.Insights.Enabled,
	)

	// Intervals are validated during Load; parse errors here are impossible.
	backfillInterval, _ := time.ParseDuration(cfg.Backfill.CronInterval)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := dbAdapter.ValidateSchema(); err != nil {
		slog.Error("Warehouse schema validation failed", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Stores
	quoteStore := postgres.NewQuoteAdapter(dbAdapter.DB())
	salesStore := postgres.NewSalesAdapter(dbAdapter.DB())
	reviewStore := postgres.NewReviewAdapter(dbAdapter.DB())

	// 4. Initialize Backfill
	policyRepo, err := timeseries.NewFileSystemPolicyRepository(cfg.Backfill.PolicyDir)
	if err != nil {
		slog.Error("Failed to load backfill policies", "error", err)
		os.Exit(1)
	}
	backfillSvc := backfill.NewService(quoteStore, policyRepo, cfg.Backfill.WorkerCount, cfg.Backfill.Seed, logger)
	backfillScheduler := backfill.NewScheduler(backfillSvc, backfillInterval, logger)

	// 5. Initialize Rollup
	rollupSvc := rollup.NewService(salesStore, logger)
	var rollupScheduler *rollup.Scheduler
	if cfg.Rollup.Enabled {
		rollupInterval, _ := time.ParseDuration(cfg.Rollup.CronInterval)
		rollupScheduler = rollup.NewScheduler(rollupSvc, rollupInterval, logger)
	}

	// 6. Initialize Insights (optional)
	var insightsSvc *insights.Service
	if cfg.Insights.Enabled {
		summarizer, err := insights.NewOpenAISummarizer(cfg.Insights.APIKey, cfg.Insights.BaseURL, cfg.Insights.Model)
		if err != nil {
			slog.Error("Failed to initialize summarizer", "error", err)
			os.Exit(1)
		}
		insightsSvc = insights.NewService(reviewStore, summarizer, cfg.Insights.BatchLimit, logger)
	}

	// 7. Initialize Server
	analyticsSvc := analytics.NewService(quoteStore, salesStore, backfillSvc, rollupSvc, insightsSvc)
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter, cfg.Server.Mode)
	analyticsSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Backfill.Enabled {
		go backfillScheduler.Run(ctx)
	} else {
		slog.Info("Backfill scheduler disabled by config")
	}
	if rollupScheduler != nil {
		go rollupScheduler.Run(ctx)
	} else {
		slog.Info("Rollup scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
