// Package writeback propagates API status changes to the sheet without
// holding the request open on the sheet vendor.
package writeback

import (
	"context"
	"errors"
	"sync"

	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/logger"
)

// ErrClosed is returned by Submit after the queue was closed.
var ErrClosed = errors.New("write-back queue closed")

// Request is one status write-back for the row recorded at sync time.
type Request struct {
	Sheet          string  `json:"sheet"`
	Row            int     `json:"row"`
	DNNumber       string  `json:"dnNumber"`
	StatusDelivery *string `json:"statusDelivery,omitempty"`
	StatusSite     *string `json:"statusSite,omitempty"`
	Remark         *string `json:"remark,omitempty"`
	UpdatedBy      string  `json:"updatedBy,omitempty"`
}

// StatusUpdate converts the request for the sheet writer.
func (r Request) StatusUpdate() sheets.StatusUpdate {
	return sheets.StatusUpdate{
		Sheet:          r.Sheet,
		Row:            r.Row,
		DNNumber:       r.DNNumber,
		StatusDelivery: r.StatusDelivery,
		StatusSite:     r.StatusSite,
		Remark:         r.Remark,
		UpdatedBy:      r.UpdatedBy,
	}
}

// StatusWriter is the sheet side of a write-back.
type StatusWriter interface {
	WriteBackStatus(ctx context.Context, update sheets.StatusUpdate) sheets.StatusOutcome
}

// Queue accepts write-back requests.
type Queue interface {
	Submit(ctx context.Context, req Request) (*Handle, error)
}

// Handle resolves once the write-back finished or was handed off.
type Handle struct {
	done    chan struct{}
	once    sync.Once
	outcome sheets.StatusOutcome
}

// NewHandle returns an unresolved handle.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Resolved returns a handle that already carries outcome.
func Resolved(outcome sheets.StatusOutcome) *Handle {
	h := NewHandle()
	h.Resolve(outcome)
	return h
}

// Resolve records the outcome. Only the first call counts.
func (h *Handle) Resolve(outcome sheets.StatusOutcome) {
	h.once.Do(func() {
		h.outcome = outcome
		close(h.done)
	})
}

// Done is closed once the handle resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the outcome is known or ctx ends.
func (h *Handle) Wait(ctx context.Context) (sheets.StatusOutcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return sheets.StatusOutcome{}, ctx.Err()
	}
}

// Inline writes synchronously within Submit.
type Inline struct {
	writer StatusWriter
}

// NewInline creates an Inline queue.
func NewInline(writer StatusWriter) *Inline {
	return &Inline{writer: writer}
}

func (q *Inline) Submit(ctx context.Context, req Request) (*Handle, error) {
	return Resolved(q.writer.WriteBackStatus(ctx, req.StatusUpdate())), nil
}

// Detached writes on tracked goroutines that outlive the request.
type Detached struct {
	writer StatusWriter
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDetached creates a Detached queue.
func NewDetached(writer StatusWriter, log *logger.Logger) *Detached {
	return &Detached{writer: writer, log: log}
}

func (q *Detached) Submit(ctx context.Context, req Request) (*Handle, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.wg.Add(1)
	q.mu.Unlock()

	h := NewHandle()
	bg := context.WithoutCancel(ctx)
	go func() {
		defer q.wg.Done()
		outcome := q.writer.WriteBackStatus(bg, req.StatusUpdate())
		if outcome.Status == sheets.OutcomeError {
			q.log.Warn("detached sheet write-back failed", "dnNumber", req.DNNumber, "error", outcome.Err)
		}
		h.Resolve(outcome)
	}()
	return h, nil
}

// Close stops accepting requests and waits for in-flight writes or ctx.
func (q *Detached) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Queue = (*Inline)(nil)
	_ Queue = (*Detached)(nil)
)
