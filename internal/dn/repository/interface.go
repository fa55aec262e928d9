// Package repository provides data access for DNs, their history and the
// sync audit log.
package repository

import "context"

// SyncStore is the set-based access the reconciler needs.
type SyncStore interface {
	GetSnapshotMap(ctx context.Context, numbers []string) (map[string]DN, error)
	GetLatestHistoryMap(ctx context.Context, numbers []string) (map[string]Record, error)
	BulkCreate(ctx context.Context, payloads []Payload) (int64, error)
	BulkUpdate(ctx context.Context, payloads []UpdatePayload) (int64, error)
	MarkMissingAsDeleted(ctx context.Context, present []string) (int64, error)
	ResetPresentAsActive(ctx context.Context, present []string) (int64, error)
	NormalizeStoredFields(ctx context.Context, fn NormalizeFunc) (int, error)
	InTx(ctx context.Context, fn func(SyncStore) error) error
}

// SyncLogStore persists sync audit rows.
type SyncLogStore interface {
	CreateSyncLog(ctx context.Context, entry SyncLog) (SyncLog, error)
	LatestSyncLog(ctx context.Context) (*SyncLog, error)
}

// ColumnStore manages dynamic dn columns.
type ColumnStore interface {
	ListDNColumns(ctx context.Context) ([]string, error)
	AddDNTextColumn(ctx context.Context, name string) error
}

// DNStore is the API-side access to DNs and history.
type DNStore interface {
	EnsureDN(ctx context.Context, number string, fields map[string]*string) (DN, error)
	AddRecord(ctx context.Context, rec NewRecord) (Record, error)
	GetDN(ctx context.Context, number string) (DN, error)
	ExistingNumbers(ctx context.Context, numbers []string) ([]string, error)
	ListDNs(ctx context.Context, filter ListFilter) (ListResult, error)
	ListRecords(ctx context.Context, number string, limit int) ([]Record, error)
	GetRecord(ctx context.Context, id int64) (Record, error)
	UpdateRecord(ctx context.Context, id int64, patch RecordPatch) (Record, error)
	DeleteRecord(ctx context.Context, id int64) error
	DeleteDN(ctx context.Context, number string) error
	StatusDeliveryCounts(ctx context.Context, filter StatsFilter) ([]StatusCount, error)
}

// Repository is everything the DN module persists.
type Repository interface {
	SyncStore
	SyncLogStore
	ColumnStore
	DNStore
}
