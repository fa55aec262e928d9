// Package dnsync runs one full sheet to database sync and records its
// outcome in the audit log.
package dnsync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/logger"
)

const (
	alreadyRunningMsg = "dn sync already running"
	failedMessage     = "Failed to sync DN data from Google Sheet"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerCLI       Trigger = "cli"
)

// SchemaRefresher reloads dynamic columns before a run.
type SchemaRefresher interface {
	Refresh(ctx context.Context) error
}

// RowSource yields the combined sheet snapshot.
type RowSource interface {
	CombineSheets(ctx context.Context) ([]sheets.Row, error)
}

// Reconciler applies a snapshot to the store.
type Reconciler interface {
	Run(ctx context.Context, rows []sheets.Row) (reconcile.Result, error)
}

// RunError is a failed run with the trace stored in the audit log.
type RunError struct {
	Err   error
	Trace string
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Orchestrator serializes sync runs within the process and writes one
// audit row per run.
type Orchestrator struct {
	schema     SchemaRefresher
	rows       RowSource
	reconciler Reconciler
	logs       repository.SyncLogStore
	log        *logger.Logger

	running atomic.Bool
}

// New creates an Orchestrator.
func New(schema SchemaRefresher, rows RowSource, reconciler Reconciler, logs repository.SyncLogStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{schema: schema, rows: rows, reconciler: reconciler, logs: logs, log: log}
}

// Run performs one sync. A second call while a run is in progress fails
// with a conflict error and writes no audit row.
func (o *Orchestrator) Run(ctx context.Context, trigger Trigger) (res reconcile.Result, err error) {
	if !o.running.CompareAndSwap(false, true) {
		return reconcile.Result{}, apperr.Conflict(alreadyRunningMsg)
	}
	defer o.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = &RunError{Err: fmt.Errorf("dn sync panic: %v", r), Trace: string(debug.Stack())}
		}
		if err != nil {
			var runErr *RunError
			if !errors.As(err, &runErr) {
				runErr = &RunError{Err: err, Trace: traceOf(err)}
				err = runErr
			}
			o.recordFailure(ctx, runErr)
		} else {
			o.recordSuccess(ctx, res)
		}
		o.log.SyncRun(string(trigger), res.Created, res.Updated, res.Unchanged, len(res.Numbers), err)
	}()

	if err := o.schema.Refresh(ctx); err != nil {
		return res, err
	}
	rows, err := o.rows.CombineSheets(ctx)
	if err != nil {
		return res, err
	}
	return o.reconciler.Run(ctx, rows)
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LatestLog returns the newest audit row, or nil before the first run.
func (o *Orchestrator) LatestLog(ctx context.Context) (*repository.SyncLog, error) {
	return o.logs.LatestSyncLog(ctx)
}

// SuccessMessage is the audit message of a successful run.
func SuccessMessage(res reconcile.Result) string {
	if len(res.Numbers) == 0 {
		return reconcile.EmptySnapshotMessage
	}
	return fmt.Sprintf("Synced %d DN numbers from Google Sheet (created=%d, updated=%d, ignored=%d)",
		len(res.Numbers), res.Created, res.Updated, res.Ignored())
}

func (o *Orchestrator) recordSuccess(ctx context.Context, res reconcile.Result) {
	_, err := o.logs.CreateSyncLog(context.WithoutCancel(ctx), repository.SyncLog{
		Status:      repository.SyncStatusSuccess,
		SyncedCount: len(res.Numbers),
		DNNumbers:   res.Numbers,
		Message:     SuccessMessage(res),
	})
	if err != nil {
		o.log.Error("failed to persist dn sync log", "error", err)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, runErr *RunError) {
	message := runErr.Err.Error()
	_, err := o.logs.CreateSyncLog(context.WithoutCancel(ctx), repository.SyncLog{
		Status:         repository.SyncStatusFailed,
		DNNumbers:      []string{},
		Message:        failedMessage,
		ErrorMessage:   &message,
		ErrorTraceback: &runErr.Trace,
	})
	if err != nil {
		o.log.Error("failed to persist dn sync failure log", "error", err)
	}
}

// traceOf renders the error chain followed by the current stack.
func traceOf(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %v\n", e, e)
	}
	b.WriteString("\n")
	b.Write(debug.Stack())
	return b.String()
}
