package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/platform/logger"
)

// NoteText marks cells written by the tracker.
const NoteText = "Modified by Fast Tracker"

// GMT7 is the operations timezone used for sheet timestamps.
var GMT7 = time.FixedZone("GMT+7", 7*60*60)

// OutcomeStatus is the result of one write-back attempt.
type OutcomeStatus string

const (
	OutcomeUpdated  OutcomeStatus = "updated"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeNotFound OutcomeStatus = "not_found"
	OutcomeError    OutcomeStatus = "error"
	OutcomeQueued   OutcomeStatus = "queued"
)

// FieldOutcome reports a single-field write-back.
type FieldOutcome struct {
	Status    OutcomeStatus `json:"status"`
	Sheet     string        `json:"sheet"`
	Row       int           `json:"row,omitempty"`
	Corrected bool          `json:"rowCorrected,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// StatusUpdate is the status change written back after an API update.
type StatusUpdate struct {
	Sheet          string
	Row            int
	DNNumber       string
	StatusDelivery *string
	StatusSite     *string
	Remark         *string
	UpdatedBy      string
}

// StatusOutcome reports a status write-back.
type StatusOutcome struct {
	Status    OutcomeStatus `json:"status"`
	Sheet     string        `json:"sheet"`
	Row       int           `json:"row,omitempty"`
	Corrected bool          `json:"rowCorrected,omitempty"`
	Fields    []string      `json:"fields,omitempty"`
	Queued    bool          `json:"queued,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Writer propagates DN changes back to the sheet. Row numbers recorded at
// sync time are only a hint: the identifier cell decides where to write.
type Writer struct {
	source  Source
	schema  Schema
	timeout time.Duration
	cache   *IDCache
	log     *logger.Logger
	now     func() time.Time
}

// NewWriter creates a Writer. A non-positive timeout disables the bound.
// cache may be nil; when set, write-backs to unknown worksheets refresh it.
func NewWriter(source Source, schema Schema, timeout time.Duration, cache *IDCache, log *logger.Logger) *Writer {
	return &Writer{source: source, schema: schema, timeout: timeout, cache: cache, log: log, now: time.Now}
}

// WriteBackField writes value into field on the row holding identifier.
// If expectedRow no longer holds identifier, the identifier column is
// scanned and the last matching row is used. Errors never escape; they are
// reported in the outcome.
func (w *Writer) WriteBackField(ctx context.Context, sheet string, expectedRow int, identifier, field, value string) (out FieldOutcome) {
	out.Sheet = sheet
	defer func() {
		if r := recover(); r != nil {
			out = FieldOutcome{Status: OutcomeError, Sheet: sheet, Err: fmt.Sprint(r)}
		}
		w.logOutcome("sheet field write-back", identifier, out.Status, out.Row, out.Corrected, out.Err)
	}()

	ctx, cancel := w.bound(ctx)
	defer cancel()
	w.refreshLinks(ctx, sheet)

	idCol, targetCol, err := w.positions(field)
	if err != nil {
		return FieldOutcome{Status: OutcomeError, Sheet: sheet, Err: err.Error()}
	}

	row, corrected, err := w.locate(ctx, sheet, expectedRow, normalize.Identifier(identifier), idCol)
	if err != nil {
		return FieldOutcome{Status: OutcomeError, Sheet: sheet, Err: err.Error()}
	}
	if row == 0 {
		return FieldOutcome{Status: OutcomeNotFound, Sheet: sheet, Err: "dn_number not found in sheet"}
	}
	out.Row, out.Corrected = row, corrected

	current, err := w.source.ReadCell(ctx, sheet, row, targetCol)
	if err != nil {
		out.Status, out.Err = OutcomeError, fmt.Sprintf("read %s: %v", field, err)
		return out
	}
	if strings.TrimSpace(current) == strings.TrimSpace(value) {
		out.Status = OutcomeSkipped
		return out
	}
	if err := w.source.WriteCell(ctx, sheet, row, targetCol, value); err != nil {
		out.Status, out.Err = OutcomeError, fmt.Sprintf("write %s: %v", field, err)
		return out
	}
	w.annotate(ctx, sheet, row, targetCol)
	out.Status = OutcomeUpdated
	return out
}

// WriteBackStatus writes the delivery status, site status and remark of an
// API update, plus the actual arrival or departure time for statuses that
// carry one. The row is located once, with drift recovery.
func (w *Writer) WriteBackStatus(ctx context.Context, update StatusUpdate) (out StatusOutcome) {
	out.Sheet = update.Sheet
	defer func() {
		if r := recover(); r != nil {
			out = StatusOutcome{Status: OutcomeError, Sheet: update.Sheet, Err: fmt.Sprint(r)}
		}
		w.logOutcome("sheet status write-back", update.DNNumber, out.Status, out.Row, out.Corrected, out.Err)
	}()

	ctx, cancel := w.bound(ctx)
	defer cancel()
	w.refreshLinks(ctx, update.Sheet)

	idCol, _, err := w.positions(columns.StatusDeliveryColumn)
	if err != nil {
		return StatusOutcome{Status: OutcomeError, Sheet: update.Sheet, Err: err.Error()}
	}

	row, corrected, err := w.locate(ctx, update.Sheet, update.Row, normalize.Identifier(update.DNNumber), idCol)
	if err != nil {
		return StatusOutcome{Status: OutcomeError, Sheet: update.Sheet, Err: err.Error()}
	}
	if row == 0 {
		return StatusOutcome{Status: OutcomeNotFound, Sheet: update.Sheet, Err: "dn_number not found in sheet"}
	}
	out.Row, out.Corrected = row, corrected

	writes := w.statusWrites(update)
	for _, write := range writes {
		col := w.schema.Position(write.field)
		if col == 0 {
			continue
		}
		if err := w.source.WriteCell(ctx, update.Sheet, row, col, write.value); err != nil {
			out.Status, out.Err = OutcomeError, fmt.Sprintf("write %s: %v", write.field, err)
			return out
		}
		w.annotate(ctx, update.Sheet, row, col)
		out.Fields = append(out.Fields, write.field)
	}

	out.Status = OutcomeUpdated
	if len(out.Fields) == 0 {
		out.Status = OutcomeSkipped
	}
	return out
}

type cellWrite struct {
	field string
	value string
}

func (w *Writer) statusWrites(update StatusUpdate) []cellWrite {
	var writes []cellWrite
	if update.StatusDelivery != nil {
		writes = append(writes, cellWrite{columns.StatusDeliveryColumn, *update.StatusDelivery})
	}
	if update.StatusSite != nil {
		writes = append(writes, cellWrite{"status_site", *update.StatusSite})
	}
	if update.Remark != nil {
		writes = append(writes, cellWrite{"issue_remark", *update.Remark})
	}

	status := ""
	if update.StatusDelivery != nil {
		status = *update.StatusDelivery
	}
	stamp := SheetTimestamp(w.now())
	if normalize.IsArrival(status) {
		writes = append(writes, cellWrite{"actual_arrive_time_ata", stamp})
	}
	if normalize.IsDeparture(status) {
		writes = append(writes, cellWrite{"actual_depart_from_start_point_atd", stamp})
	}
	return writes
}

// SheetTimestamp formats t in GMT+7 as M/D/YYYY H:MM:SS.
func SheetTimestamp(t time.Time) string {
	t = t.In(GMT7)
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d", t.Month(), t.Day(), t.Year(), t.Hour(), t.Minute(), t.Second())
}

func (w *Writer) positions(field string) (int, int, error) {
	idCol := w.schema.Position(columns.IdentifierColumn)
	if idCol == 0 {
		return 0, 0, fmt.Errorf("%w: %s not in column schema", ErrSchemaMismatch, columns.IdentifierColumn)
	}
	targetCol := w.schema.Position(field)
	if targetCol == 0 {
		return 0, 0, fmt.Errorf("%w: %s not in column schema", ErrSchemaMismatch, field)
	}
	return idCol, targetCol, nil
}

// locate returns the row holding identifier, whether it differs from
// expectedRow, or 0 when the identifier is not in the sheet.
func (w *Writer) locate(ctx context.Context, sheet string, expectedRow int, identifier string, idCol int) (int, bool, error) {
	if expectedRow > 0 {
		value, err := w.source.ReadCell(ctx, sheet, expectedRow, idCol)
		switch {
		case err == nil && normalize.Identifier(value) == identifier:
			return expectedRow, false, nil
		case err != nil && errors.Is(err, ErrWorksheetNotFound):
			return 0, false, err
		case err != nil:
			w.log.Debug("expected row unreadable, scanning column", "sheet", sheet, "row", expectedRow, "error", err)
		}
	}

	values, err := w.source.ReadColumn(ctx, sheet, idCol)
	if err != nil {
		return 0, false, fmt.Errorf("read dn_number column: %w", err)
	}
	found := 0
	for i, value := range values {
		if normalize.Identifier(value) == identifier {
			found = i + 1
		}
	}
	if found == 0 {
		return 0, false, nil
	}
	return found, found != expectedRow, nil
}

func (w *Writer) annotate(ctx context.Context, sheet string, row, col int) {
	annotator, ok := w.source.(Annotator)
	if !ok {
		return
	}
	if err := annotator.AnnotateCell(ctx, sheet, row, col, NoteText); err != nil {
		w.log.Debug("failed to annotate cell", "sheet", sheet, "row", row, "col", col, "error", err)
	}
}

// refreshLinks reloads the worksheet IDs when sheet is not cached yet, so
// processes that never sync still build cell links.
func (w *Writer) refreshLinks(ctx context.Context, sheet string) {
	if w.cache == nil {
		return
	}
	if _, ok := w.cache.Lookup(sheet); ok {
		return
	}
	worksheets, err := w.source.ListWorksheets(ctx)
	if err != nil {
		w.log.Debug("worksheet id refresh failed", "sheet", sheet, "error", err)
		return
	}
	w.cache.Refresh(worksheets)
}

func (w *Writer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.timeout)
}

func (w *Writer) logOutcome(msg, identifier string, status OutcomeStatus, row int, corrected bool, errText string) {
	switch status {
	case OutcomeError:
		w.log.Error(msg, "dn_number", identifier, "status", status, "error", errText)
	case OutcomeNotFound:
		w.log.Warn(msg, "dn_number", identifier, "status", status)
	default:
		w.log.Info(msg, "dn_number", identifier, "status", status, "row", row, "row_corrected", corrected)
	}
}
