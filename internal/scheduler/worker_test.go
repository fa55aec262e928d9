package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/writeback"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type fakeSyncer struct {
	err      error
	triggers []dnsync.Trigger
}

func (f *fakeSyncer) Run(_ context.Context, trigger dnsync.Trigger) (reconcile.Result, error) {
	f.triggers = append(f.triggers, trigger)
	return reconcile.Result{}, f.err
}

type fakeWriter struct {
	outcome sheets.StatusOutcome
	updates []sheets.StatusUpdate
}

func (f *fakeWriter) WriteBackStatus(_ context.Context, update sheets.StatusUpdate) sheets.StatusOutcome {
	f.updates = append(f.updates, update)
	return f.outcome
}

type fakeArchiver struct {
	days int
}

func (f *fakeArchiver) Mark(_ context.Context, thresholdDays int, _ time.Time) (sheets.ArchiveResult, error) {
	f.days = thresholdDays
	return sheets.ArchiveResult{ThresholdDays: thresholdDays, MatchedRows: 2}, nil
}

func TestHandleSheetSyncSkipsRetryOnFailure(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("sheets api down")}
	w := newWorker(syncer, &fakeWriter{}, &fakeArchiver{}, logger.NewDiscard())

	task, _ := NewSheetSyncTask(SheetSyncPayload{})
	err := w.handleSheetSync(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry, got %v", err)
	}
	if len(syncer.triggers) != 1 || syncer.triggers[0] != dnsync.TriggerScheduled {
		t.Fatalf("expected scheduled trigger, got %v", syncer.triggers)
	}
}

func TestHandleSheetSyncIgnoresOverlap(t *testing.T) {
	syncer := &fakeSyncer{err: apperr.Conflict("dn sync already running")}
	w := newWorker(syncer, &fakeWriter{}, &fakeArchiver{}, logger.NewDiscard())

	task, _ := NewSheetSyncTask(SheetSyncPayload{Trigger: string(dnsync.TriggerManual)})
	if err := w.handleSheetSync(context.Background(), task); err != nil {
		t.Fatalf("expected overlap to be ignored, got %v", err)
	}
	if syncer.triggers[0] != dnsync.TriggerManual {
		t.Fatalf("expected manual trigger, got %v", syncer.triggers[0])
	}
}

func TestHandleSheetWriteBackRetriesTransportErrors(t *testing.T) {
	writer := &fakeWriter{outcome: sheets.StatusOutcome{Status: sheets.OutcomeError, Err: "quota exceeded"}}
	w := newWorker(&fakeSyncer{}, writer, &fakeArchiver{}, logger.NewDiscard())

	status := "POD"
	task, _ := NewSheetWriteBackTask(SheetWriteBackPayload{Request: writeback.Request{Sheet: "Plan MOS 01", Row: 4, DNNumber: "DN004", StatusDelivery: &status}})
	err := w.handleSheetWriteBack(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if len(writer.updates) != 1 || writer.updates[0].DNNumber != "DN004" {
		t.Fatalf("unexpected updates %+v", writer.updates)
	}
}

func TestHandleSheetWriteBackAcceptsMissingRow(t *testing.T) {
	writer := &fakeWriter{outcome: sheets.StatusOutcome{Status: sheets.OutcomeNotFound}}
	w := newWorker(&fakeSyncer{}, writer, &fakeArchiver{}, logger.NewDiscard())

	task, _ := NewSheetWriteBackTask(SheetWriteBackPayload{Request: writeback.Request{Sheet: "Plan MOS 01", Row: 4, DNNumber: "DN004"}})
	if err := w.handleSheetWriteBack(context.Background(), task); err != nil {
		t.Fatalf("expected no retry for missing row, got %v", err)
	}
}

func TestHandleBadPayloadSkipsRetry(t *testing.T) {
	w := newWorker(&fakeSyncer{}, &fakeWriter{}, &fakeArchiver{}, logger.NewDiscard())
	err := w.handleSheetArchive(context.Background(), asynq.NewTask(TaskSheetArchive, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry, got %v", err)
	}
}

func TestHandleSheetArchive(t *testing.T) {
	archiver := &fakeArchiver{}
	w := newWorker(&fakeSyncer{}, &fakeWriter{}, archiver, logger.NewDiscard())

	task, _ := NewSheetArchiveTask(SheetArchivePayload{ThresholdDays: 9})
	if err := w.handleSheetArchive(context.Background(), task); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archiver.days != 9 {
		t.Fatalf("expected threshold 9, got %d", archiver.days)
	}
}
