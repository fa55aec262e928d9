package dnsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/logger"
)

type fakeSchema struct{ err error }

func (f fakeSchema) Refresh(context.Context) error { return f.err }

type fakeRows struct {
	rows []sheets.Row
	err  error
}

func (f fakeRows) CombineSheets(context.Context) ([]sheets.Row, error) { return f.rows, f.err }

type fakeReconciler struct {
	result  reconcile.Result
	err     error
	panicV  any
	block   chan struct{}
	started chan struct{}
}

func (f *fakeReconciler) Run(context.Context, []sheets.Row) (reconcile.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.result, f.err
}

type memLogs struct {
	logs []repository.SyncLog
}

func (m *memLogs) CreateSyncLog(_ context.Context, entry repository.SyncLog) (repository.SyncLog, error) {
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, entry)
	return entry, nil
}

func (m *memLogs) LatestSyncLog(context.Context) (*repository.SyncLog, error) {
	if len(m.logs) == 0 {
		return nil, nil
	}
	last := m.logs[len(m.logs)-1]
	return &last, nil
}

func TestRunRecordsSuccess(t *testing.T) {
	logs := &memLogs{}
	rec := &fakeReconciler{result: reconcile.Result{Created: 1, Updated: 2, Unchanged: 3, Numbers: []string{"DN1", "DN2", "DN3", "DN4", "DN5", "DN6"}}}
	orch := New(fakeSchema{}, fakeRows{}, rec, logs, logger.NewDiscard())

	if latest, err := orch.LatestLog(context.Background()); err != nil || latest != nil {
		t.Fatalf("expected no log before first run, got %v %v", latest, err)
	}

	res, err := orch.Run(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	latest, _ := orch.LatestLog(context.Background())
	if latest == nil || latest.Status != repository.SyncStatusSuccess || latest.SyncedCount != 6 {
		t.Fatalf("unexpected log %+v", latest)
	}
	if latest.Message != "Synced 6 DN numbers from Google Sheet (created=1, updated=2, ignored=3)" {
		t.Fatalf("unexpected message %q", latest.Message)
	}
}

func TestRunRecordsEmptySnapshot(t *testing.T) {
	logs := &memLogs{}
	orch := New(fakeSchema{}, fakeRows{}, &fakeReconciler{result: reconcile.Result{Numbers: []string{}}}, logs, logger.NewDiscard())
	if _, err := orch.Run(context.Background(), TriggerScheduled); err != nil {
		t.Fatalf("run: %v", err)
	}
	if logs.logs[0].Message != reconcile.EmptySnapshotMessage {
		t.Fatalf("unexpected message %q", logs.logs[0].Message)
	}
}

func TestRunRecordsTransportFailure(t *testing.T) {
	logs := &memLogs{}
	boom := errors.New("sheets api unreachable")
	orch := New(fakeSchema{}, fakeRows{err: boom}, &fakeReconciler{}, logs, logger.NewDiscard())

	_, err := orch.Run(context.Background(), TriggerManual)
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Trace == "" {
		t.Fatalf("expected RunError with trace, got %v", err)
	}
	entry := logs.logs[0]
	if entry.Status != repository.SyncStatusFailed || entry.Message != "Failed to sync DN data from Google Sheet" {
		t.Fatalf("unexpected failure log %+v", entry)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage != boom.Error() {
		t.Fatalf("unexpected error message %v", entry.ErrorMessage)
	}
	if entry.ErrorTraceback == nil || !strings.Contains(*entry.ErrorTraceback, "sheets api unreachable") {
		t.Fatal("expected traceback with error chain")
	}
}

func TestRunRecoversPanics(t *testing.T) {
	logs := &memLogs{}
	orch := New(fakeSchema{}, fakeRows{}, &fakeReconciler{panicV: "nil map"}, logs, logger.NewDiscard())
	_, err := orch.Run(context.Background(), TriggerManual)
	if err == nil || !strings.Contains(err.Error(), "nil map") {
		t.Fatalf("expected panic turned into error, got %v", err)
	}
	if len(logs.logs) != 1 || logs.logs[0].Status != repository.SyncStatusFailed {
		t.Fatalf("expected failure log, got %+v", logs.logs)
	}
	if orch.Running() {
		t.Fatal("expected guard released after panic")
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	logs := &memLogs{}
	rec := &fakeReconciler{block: make(chan struct{}), started: make(chan struct{}), result: reconcile.Result{Numbers: []string{"DN1"}}}
	orch := New(fakeSchema{}, fakeRows{}, rec, logs, logger.NewDiscard())

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), TriggerScheduled)
		done <- err
	}()
	<-rec.started

	if _, err := orch.Run(context.Background(), TriggerManual); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	close(rec.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(logs.logs) != 1 {
		t.Fatalf("expected one audit row, got %d", len(logs.logs))
	}
}
