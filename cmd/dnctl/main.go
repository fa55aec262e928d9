package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dn_tracker_backend/internal/cli"
	"dn_tracker_backend/internal/dn"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/config"
	"dn_tracker_backend/platform/db"
	"dn_tracker_backend/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(connect, migrator{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

const migrationsDir = "migrations"

// migrator runs migrations straight from configuration.
type migrator struct{}

func (migrator) Up(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return db.RunMigrations(ctx, cfg, migrationsDir)
}

func (migrator) Version() (uint, bool, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, false, fmt.Errorf("load config: %w", err)
	}
	return db.MigrationVersion(cfg, migrationsDir)
}

func connect(ctx context.Context) (*cli.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithFile(cfg.Env, cfg.GetSyncLogPath())

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	cache := sheets.NewIDCache(cfg.GetSpreadsheetID())
	source, err := sheets.NewGoogleSource(ctx, cfg.GetGoogleCredentialsJSON(), cfg.GetSpreadsheetID(), cache)
	if err != nil {
		pool.Close()
		_ = log.Close()
		return nil, fmt.Errorf("google sheets client: %w", err)
	}

	components, err := dn.NewComponents(ctx, pool, source, cache, cfg, log)
	if err != nil {
		pool.Close()
		_ = log.Close()
		return nil, err
	}

	return &cli.Backend{
		Syncer:      components.Orchestrator,
		Columns:     components.Registry,
		Archiver:    components.Archiver,
		ArchiveDays: cfg.GetArchiveThresholdDays(),
		Close: func() {
			pool.Close()
			_ = log.Close()
		},
	}, nil
}
