package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dn_tracker_backend/internal/adapters/storage"
	"dn_tracker_backend/internal/dn"
	"dn_tracker_backend/internal/dn/service"
	"dn_tracker_backend/internal/dn/writeback"
	apphttp "dn_tracker_backend/internal/http"
	"dn_tracker_backend/internal/http/router"
	"dn_tracker_backend/internal/scheduler"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/config"
	"dn_tracker_backend/platform/db"
	"dn_tracker_backend/platform/logger"
	"dn_tracker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewWithFile(cfg.Env, cfg.GetSyncLogPath())
	defer func() { _ = log.Close() }()
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

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

	// Cell links for listed DNs need worksheet IDs before any write-back.
	if _, err := source.ListWorksheets(ctx); err != nil {
		log.Warn("failed to load worksheet ids; sheet links fill on first write-back", "error", err)
	}

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	deps := components.ServiceDeps()
	deps.PhotoBucket = cfg.GetMinioBucketDNPhotos()

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "dn-photos", cfg.GetMinioBucketDNPhotos())
		deps.Storage = storageSvc
		log.Info("storage service initialized", "dnPhotosBucket", cfg.GetMinioBucketDNPhotos())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; photo uploads disabled")
	}

	var detached *writeback.Detached
	if cfg.GetRedisURL() != "" {
		queueClient, err := scheduler.NewClient(cfg, cfg.GetSyncInterval())
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() { _ = queueClient.Close() }()
		deps.WriteBack = queueClient
		deps.Enqueuer = queueClient
	} else {
		log.Warn("REDIS_URL not configured; sheet write-backs run in-process")
		detached = writeback.NewDetached(components.Writer, log.Named("dn-writeback"))
		deps.WriteBack = detached
	}

	dnModule, err := dn.NewModule(service.New(deps), val, cfg.GetMinIOMaxFileSize())
	if err != nil {
		log.Error("failed to initialize dn module", "error", err)
		panic("failed to initialize dn module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{dnModule},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if detached != nil {
			if drainErr := detached.Close(shutdownCtx); drainErr != nil {
				log.Warn("pending sheet write-backs not drained", "error", drainErr)
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
