package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dn_tracker_backend/internal/dn/dnsync"
	"dn_tracker_backend/internal/dn/reconcile"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/config"
	"dn_tracker_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Syncer runs one sheet sync.
type Syncer interface {
	Run(ctx context.Context, trigger dnsync.Trigger) (reconcile.Result, error)
}

// StatusWriter performs sheet write-backs.
type StatusWriter interface {
	WriteBackStatus(ctx context.Context, update sheets.StatusUpdate) sheets.StatusOutcome
}

// Archiver marks old delivered rows.
type Archiver interface {
	Mark(ctx context.Context, thresholdDays int, now time.Time) (sheets.ArchiveResult, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	syncer   Syncer
	writer   StatusWriter
	archiver Archiver
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, syncer Syncer, writer StatusWriter, archiver Archiver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(syncer, writer, archiver, log)
	w.server = server
	return w, nil
}

func newWorker(syncer Syncer, writer StatusWriter, archiver Archiver, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:      mux,
		syncer:   syncer,
		writer:   writer,
		archiver: archiver,
		log:      log,
	}

	mux.HandleFunc(TaskSheetSync, w.handleSheetSync)
	mux.HandleFunc(TaskSheetWriteBack, w.handleSheetWriteBack)
	mux.HandleFunc(TaskSheetArchive, w.handleSheetArchive)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleSheetSync does not retry failures; the next tick runs again.
func (w *Worker) handleSheetSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSheetSyncPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	trigger := dnsync.Trigger(payload.Trigger)
	if trigger == "" {
		trigger = dnsync.TriggerScheduled
	}

	_, err = w.syncer.Run(ctx, trigger)
	if apperr.Is(err, apperr.KindConflict) {
		w.log.Info("dn sync skipped, previous run still active")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// handleSheetWriteBack retries transport errors only; missing rows are final.
func (w *Worker) handleSheetWriteBack(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSheetWriteBackPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outcome := w.writer.WriteBackStatus(ctx, payload.Request.StatusUpdate())
	if outcome.Status == sheets.OutcomeError {
		return errors.New(outcome.Err)
	}
	return nil
}

func (w *Worker) handleSheetArchive(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSheetArchivePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := w.archiver.Mark(ctx, payload.ThresholdDays, time.Now())
	if err != nil {
		return err
	}
	w.log.Info("dn archive marking complete", "matched", result.MatchedRows, "formatted", result.FormattedRows)
	return nil
}
