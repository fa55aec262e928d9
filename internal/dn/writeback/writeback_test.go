package writeback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/logger"
)

type fakeWriter struct {
	calls   atomic.Int32
	release chan struct{}
	status  sheets.OutcomeStatus
}

func (f *fakeWriter) WriteBackStatus(ctx context.Context, update sheets.StatusUpdate) sheets.StatusOutcome {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	status := f.status
	if status == "" {
		status = sheets.OutcomeUpdated
	}
	return sheets.StatusOutcome{Status: status, Sheet: update.Sheet, Row: update.Row}
}

func TestInlineResolvesImmediately(t *testing.T) {
	writer := &fakeWriter{}
	h, err := NewInline(writer).Submit(context.Background(), Request{Sheet: "Plan MOS 01", Row: 4, DNNumber: "DN1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("expected inline handle to be resolved")
	}
	out, _ := h.Wait(context.Background())
	if out.Status != sheets.OutcomeUpdated || out.Row != 4 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestDetachedSurvivesRequestCancel(t *testing.T) {
	writer := &fakeWriter{release: make(chan struct{})}
	q := NewDetached(writer, logger.NewDiscard())

	ctx, cancel := context.WithCancel(context.Background())
	h, err := q.Submit(ctx, Request{Sheet: "Plan MOS 01", Row: 7, DNNumber: "DN1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()
	close(writer.release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	out, err := h.Wait(waitCtx)
	if err != nil || out.Status != sheets.OutcomeUpdated {
		t.Fatalf("unexpected outcome %+v %v", out, err)
	}
}

func TestDetachedCloseDrains(t *testing.T) {
	writer := &fakeWriter{release: make(chan struct{})}
	q := NewDetached(writer, logger.NewDiscard())
	h, _ := q.Submit(context.Background(), Request{DNNumber: "DN1"})

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Close(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
	if _, err := q.Submit(context.Background(), Request{DNNumber: "DN2"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	close(writer.release)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	<-h.Done()
	if writer.calls.Load() != 1 {
		t.Fatalf("expected one write, got %d", writer.calls.Load())
	}
}

func TestWaitHonoursContext(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	h.Resolve(sheets.StatusOutcome{Status: sheets.OutcomeSkipped})
	h.Resolve(sheets.StatusOutcome{Status: sheets.OutcomeError})
	out, _ := h.Wait(context.Background())
	if out.Status != sheets.OutcomeSkipped {
		t.Fatalf("expected first resolution to win, got %s", out.Status)
	}
}
