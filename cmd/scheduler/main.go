package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dn_tracker_backend/internal/dn"
	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/scheduler"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/config"
	"dn_tracker_backend/platform/db"
	"dn_tracker_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewWithFile(cfg.Env, cfg.GetSyncLogPath())
	defer func() { _ = log.Close() }()
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	cache := sheets.NewIDCache(cfg.GetSpreadsheetID())
	source, err := sheets.NewGoogleSource(ctx, cfg.GetGoogleCredentialsJSON(), cfg.GetSpreadsheetID(), cache)
	if err != nil {
		log.Error("failed to initialize google sheets client", "error", err)
		panic("failed to initialize google sheets client: " + err.Error())
	}

	components, err := dn.NewComponents(ctx, pool, source, cache, cfg, log)
	if err != nil {
		log.Error("failed to initialize dn components", "error", err)
		panic("failed to initialize dn components: " + err.Error())
	}

	syncJob := func(ctx context.Context) error {
		_, err := components.Orchestrator.Run(ctx, dnsync.TriggerScheduled)
		if apperr.Is(err, apperr.KindConflict) {
			return nil
		}
		return err
	}
	archiveJob := func(ctx context.Context) error {
		_, err := components.Archiver.Mark(ctx, cfg.GetArchiveThresholdDays(), time.Now())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.GetRedisURL() != "" {
		client, err := scheduler.NewClient(cfg, cfg.GetSyncInterval())
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() { _ = client.Close() }()

		worker, err := scheduler.NewWorker(cfg, components.Orchestrator, components.Writer, components.Archiver, log.Named("dn-worker"))
		if err != nil {
			log.Error("failed to initialize scheduler worker", "error", err)
			panic("failed to initialize scheduler worker: " + err.Error())
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})

		syncJob = client.EnqueueSheetSync
		archiveJob = func(ctx context.Context) error {
			return client.EnqueueSheetArchive(ctx, cfg.GetArchiveThresholdDays())
		}
	} else {
		log.Warn("REDIS_URL not configured; running sync and archive jobs in-process")
	}

	syncTicker := scheduler.NewPeriodicJob("dn-sheet-sync", cfg.GetSyncInitialDelay(), cfg.GetSyncInterval(), syncJob, log)
	archiveTicker := scheduler.NewPeriodicJob("dn-sheet-archive", cfg.GetSyncInitialDelay(), cfg.GetArchiveInterval(), archiveJob, log)
	g.Go(func() error {
		syncTicker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		archiveTicker.Run(gctx)
		return nil
	})

	log.Info("scheduler running",
		"syncInterval", cfg.GetSyncInterval().String(),
		"archiveInterval", cfg.GetArchiveInterval().String(),
		"archiveThresholdDays", cfg.GetArchiveThresholdDays(),
	)
	_ = g.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
