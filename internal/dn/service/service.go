// Package service holds the DN use cases behind the HTTP and CLI surfaces.
package service

import (
	"context"
	"time"

	"dn_tracker_backend/internal/adapters/storage"
	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/writeback"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/logger"
)

const (
	maxRemarkRunes     = 1000
	defaultPageSize    = 50
	defaultRecordLimit = 100
	photoFolder        = "dn"
)

// Store is the persistence the service needs.
type Store interface {
	repository.DNStore
	repository.SyncLogStore
}

// ColumnRegistry exposes the live column layout.
type ColumnRegistry interface {
	SheetColumns() []string
	DynamicColumns() []string
	Version() int64
	Extend(ctx context.Context, names []string) ([]string, error)
}

// Syncer runs one synchronous sheet sync.
type Syncer interface {
	Run(ctx context.Context, trigger dnsync.Trigger) (reconcile.Result, error)
}

// SyncEnqueuer schedules a background sheet sync.
type SyncEnqueuer interface {
	EnqueueSheetSync(ctx context.Context) error
}

// Archiver marks old delivered rows on the sheet.
type Archiver interface {
	Mark(ctx context.Context, thresholdDays int, now time.Time) (sheets.ArchiveResult, error)
}

// SheetLinker builds deep links to sheet rows.
type SheetLinker interface {
	CellURL(title string, row int) string
}

// Deps wires a Service. Storage, WriteBack, Enqueuer, Archiver and Linker
// are optional.
type Deps struct {
	Store       Store
	Columns     ColumnRegistry
	Syncer      Syncer
	Enqueuer    SyncEnqueuer
	Archiver    Archiver
	WriteBack   writeback.Queue
	Linker      SheetLinker
	Storage     storage.StorageService
	PhotoBucket string
	ArchiveDays int
	Log         *logger.Logger
	Now         func() time.Time
}

// Service provides business logic for DNs.
type Service struct {
	store       Store
	columns     ColumnRegistry
	syncer      Syncer
	enqueuer    SyncEnqueuer
	archiver    Archiver
	writeBack   writeback.Queue
	linker      SheetLinker
	storage     storage.StorageService
	photoBucket string
	archiveDays int
	log         *logger.Logger
	now         func() time.Time
}

// New creates a new DN service.
func New(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       deps.Store,
		columns:     deps.Columns,
		syncer:      deps.Syncer,
		enqueuer:    deps.Enqueuer,
		archiver:    deps.Archiver,
		writeBack:   deps.WriteBack,
		linker:      deps.Linker,
		storage:     deps.Storage,
		photoBucket: deps.PhotoBucket,
		archiveDays: deps.ArchiveDays,
		log:         deps.Log,
		now:         now,
	}
}
