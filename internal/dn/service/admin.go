package service

import (
	"context"
	"errors"
	"strings"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/dn/transport"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
)

func (s *Service) ListColumns() transport.ColumnsResponse {
	return transport.ColumnsResponse{
		Columns: s.columns.SheetColumns(),
		Dynamic: s.columns.DynamicColumns(),
		Version: s.columns.Version(),
	}
}

// ExtendColumns adds dynamic sheet columns. Names are lowercased first.
func (s *Service) ExtendColumns(ctx context.Context, req transport.ExtendColumnsRequest) (transport.ExtendColumnsResponse, error) {
	names := make([]string, 0, len(req.Columns))
	for _, name := range req.Columns {
		names = append(names, strings.ToLower(strings.TrimSpace(name)))
	}
	added, err := s.columns.Extend(ctx, names)
	if errors.Is(err, columns.ErrInvalidColumnName) {
		return transport.ExtendColumnsResponse{}, apperr.Validation(err.Error())
	}
	if err != nil {
		return transport.ExtendColumnsResponse{}, err
	}
	s.log.Info("dn columns extended", "added", added, "version", s.columns.Version())
	return transport.ExtendColumnsResponse{
		Added:   added,
		Columns: s.columns.SheetColumns(),
		Version: s.columns.Version(),
	}, nil
}

// TriggerSync runs one sync and waits for it. Failures keep their
// *dnsync.RunError so callers can report the trace.
func (s *Service) TriggerSync(ctx context.Context, trigger dnsync.Trigger) (transport.SyncResponse, error) {
	res, err := s.syncer.Run(ctx, trigger)
	if err != nil {
		return transport.SyncResponse{}, err
	}
	numbers := res.Numbers
	if numbers == nil {
		numbers = []string{}
	}
	return transport.SyncResponse{
		OK:           true,
		SyncedCount:  len(numbers),
		CreatedCount: res.Created,
		UpdatedCount: res.Updated,
		IgnoredCount: res.Ignored(),
		DNNumbers:    numbers,
	}, nil
}

func (s *Service) EnqueueSync(ctx context.Context) (transport.SyncQueuedResponse, error) {
	if s.enqueuer == nil {
		return transport.SyncQueuedResponse{}, apperr.Unavailable("background sync queue is not configured", nil)
	}
	if err := s.enqueuer.EnqueueSheetSync(ctx); err != nil {
		return transport.SyncQueuedResponse{}, err
	}
	return transport.SyncQueuedResponse{OK: true, Queued: true}, nil
}

// LatestSyncLog returns the newest audit row. Data is nil before the first run.
func (s *Service) LatestSyncLog(ctx context.Context) (transport.LatestSyncLogResponse, error) {
	entry, err := s.store.LatestSyncLog(ctx)
	if err != nil {
		return transport.LatestSyncLogResponse{}, err
	}
	return transport.LatestSyncLogResponse{OK: true, Data: mapSyncLog(entry)}, nil
}

// MarkArchive greys out delivered rows older than the threshold, which
// defaults to the configured number of days.
func (s *Service) MarkArchive(ctx context.Context, req transport.ArchiveMarkRequest) (sheets.ArchiveResult, error) {
	if s.archiver == nil {
		return sheets.ArchiveResult{}, apperr.Unavailable("sheet archive marking is not configured", nil)
	}
	days := s.archiveDays
	if req.ThresholdDays != nil {
		days = *req.ThresholdDays
	}
	result, err := s.archiver.Mark(ctx, days, s.now())
	if err != nil {
		return sheets.ArchiveResult{}, sheetError(err)
	}
	return result, nil
}

// sheetError surfaces sheet transport failures as 503.
func sheetError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Unavailable("google sheet unavailable", err)
}

func mapSyncLog(entry *repository.SyncLog) *transport.SyncLogResponse {
	if entry == nil {
		return nil
	}
	numbers := entry.DNNumbers
	if numbers == nil {
		numbers = []string{}
	}
	return &transport.SyncLogResponse{
		ID:             entry.ID,
		Status:         entry.Status,
		SyncedCount:    entry.SyncedCount,
		DNNumbers:      numbers,
		Message:        entry.Message,
		ErrorMessage:   entry.ErrorMessage,
		ErrorTraceback: entry.ErrorTraceback,
		CreatedAt:      entry.CreatedAt,
	}
}
