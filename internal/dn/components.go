// Package dn wires the DN bounded context: sheet access, reconciliation,
// persistence and the HTTP module.
package dn

import (
	"context"
	"fmt"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/service"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/config"
	"dn_tracker_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is what the DN components read from configuration.
type Config interface {
	config.SheetsConfig
	config.SyncConfig
}

// Components are the DN building blocks shared by the API, the scheduler
// and the CLI.
type Components struct {
	Registry     *columns.Registry
	Repo         *repository.Repo
	Source       sheets.Source
	IDCache      *sheets.IDCache
	Reader       *sheets.Reader
	Writer       *sheets.Writer
	Archiver     *sheets.ArchiveMarker
	Reconciler   *reconcile.Reconciler
	Orchestrator *dnsync.Orchestrator

	archiveDays int
	log         *logger.Logger
}

// NewComponents loads the dynamic columns and builds every component over
// pool and source.
// cache must be the one source refreshes, if source keeps one.
func NewComponents(ctx context.Context, pool *pgxpool.Pool, source sheets.Source, cache *sheets.IDCache, cfg Config, log *logger.Logger) (*Components, error) {
	base := repository.New(pool, nil)
	registry := columns.NewRegistry(base)
	if err := registry.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load dn columns: %w", err)
	}
	repo := base.WithSchema(registry)

	syncLog := log.Named("dn-sync")
	reader := sheets.NewReader(source, registry, cfg.GetSheetPrefix(), cache, syncLog)
	reconciler := reconcile.New(repo, registry, syncLog)

	return &Components{
		Registry:     registry,
		Repo:         repo,
		Source:       source,
		IDCache:      cache,
		Reader:       reader,
		Writer:       sheets.NewWriter(source, registry, cfg.GetSheetWriteTimeout(), cache, syncLog),
		Archiver:     sheets.NewArchiveMarker(reader, source, registry, syncLog),
		Reconciler:   reconciler,
		Orchestrator: dnsync.New(registry, reader, reconciler, repo, syncLog),
		archiveDays:  cfg.GetArchiveThresholdDays(),
		log:          log,
	}, nil
}

// ServiceDeps returns service wiring with every component filled in.
// Callers add the optional queue, enqueuer and storage.
func (c *Components) ServiceDeps() service.Deps {
	return service.Deps{
		Store:       c.Repo,
		Columns:     c.Registry,
		Syncer:      c.Orchestrator,
		Archiver:    c.Archiver,
		Linker:      c.IDCache,
		ArchiveDays: c.archiveDays,
		Log:         c.log.Named("dn"),
	}
}
