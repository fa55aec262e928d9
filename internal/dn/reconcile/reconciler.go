// Package reconcile merges spreadsheet rows into the DN table.
package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/internal/dn/repository"
	"dn_tracker_backend/internal/sheets"
	"dn_tracker_backend/platform/logger"
)

// EmptySnapshotMessage is reported when the sheet yields no DN numbers.
const EmptySnapshotMessage = "Google Sheet returned no DN rows to sync"

// Schema is the column information the reconciler consults.
type Schema interface {
	SheetColumns() []string
	MutableColumns() []string
}

// Result summarizes one reconciliation run.
type Result struct {
	Created              int      `json:"created"`
	Updated              int      `json:"updated"`
	Unchanged            int      `json:"unchanged"`
	SkippedMissingNumber int      `json:"skippedMissingNumber"`
	SkippedEmptyPayload  int      `json:"skippedEmptyPayload"`
	Duplicates           int      `json:"duplicates"`
	Deleted              int      `json:"deleted"`
	Restored             int      `json:"restored"`
	Normalized           int      `json:"normalized"`
	Numbers              []string `json:"dnNumbers"`
}

// Ignored counts DNs that matched their stored row and were not written.
// Skipped rows are reported separately.
func (r Result) Ignored() int {
	return r.Unchanged
}

// Reconciler diffs sheet rows against stored DNs and applies the result.
type Reconciler struct {
	store  repository.SyncStore
	schema Schema
	log    *logger.Logger
	now    func() time.Time
}

// New creates a Reconciler.
func New(store repository.SyncStore, schema Schema, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, schema: schema, log: log, now: time.Now}
}

type candidate struct {
	number string
	fields map[string]*string
}

// Run reconciles rows, the combined snapshot of every candidate sheet.
// Numbers absent from rows are soft-deleted system-wide.
func (r *Reconciler) Run(ctx context.Context, rows []sheets.Row) (Result, error) {
	res := Result{Numbers: []string{}}

	candidates, order := r.collect(rows, &res)
	if len(order) == 0 {
		r.log.Warn(EmptySnapshotMessage,
			"skipped_missing_number", res.SkippedMissingNumber,
			"skipped_empty_payload", res.SkippedEmptyPayload)
		return res, nil
	}

	snapshot, err := r.store.GetSnapshotMap(ctx, order)
	if err != nil {
		return res, err
	}
	history, err := r.store.GetLatestHistoryMap(ctx, order)
	if err != nil {
		return res, err
	}

	mutable := r.schema.MutableColumns()
	var creates []repository.Payload
	var updates []repository.UpdatePayload
	for _, number := range order {
		c := candidates[number]
		if rec, ok := history[number]; ok {
			overlayHistory(c.fields, rec)
		}

		existing, exists := snapshot[number]
		payload := repository.Payload{}
		for _, col := range mutable {
			value := c.fields[col]
			if value == nil {
				continue
			}
			if exists && existing.UpdateCount > 0 && col == columns.ProtectedContactColumn {
				continue
			}
			if exists && equivalent(storedValue(existing, col), *value) {
				continue
			}
			payload[col] = *value
		}

		switch {
		case !exists:
			payload[columns.IdentifierColumn] = number
			creates = append(creates, payload)
		case len(payload) > 0:
			updates = append(updates, repository.UpdatePayload{ID: existing.ID, DNNumber: number, Fields: payload})
		default:
			res.Unchanged++
		}
	}

	res.Numbers = slices.Clone(order)
	slices.Sort(res.Numbers)

	err = r.store.InTx(ctx, func(tx repository.SyncStore) error {
		created, err := tx.BulkCreate(ctx, creates)
		if err != nil {
			return err
		}
		if _, err := tx.BulkUpdate(ctx, updates); err != nil {
			return err
		}
		restored, err := tx.ResetPresentAsActive(ctx, res.Numbers)
		if err != nil {
			return err
		}
		deleted, err := tx.MarkMissingAsDeleted(ctx, res.Numbers)
		if err != nil {
			return err
		}
		res.Created = int(created)
		res.Updated = len(updates)
		res.Restored = int(restored)
		res.Deleted = int(deleted)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("apply dn sync: %w", err)
	}

	normalized, err := r.store.NormalizeStoredFields(ctx, r.normalizeStored)
	if err != nil {
		r.log.Warn("stored field normalization failed", "error", err)
	}
	res.Normalized = normalized

	r.log.Info("dn reconciliation complete",
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"deleted", res.Deleted,
		"restored", res.Restored,
		"duplicates", res.Duplicates,
		"normalized", res.Normalized)
	return res, nil
}

// collect normalizes rows into one candidate per DN number. A repeated
// number replaces the earlier candidate.
func (r *Reconciler) collect(rows []sheets.Row, res *Result) (map[string]*candidate, []string) {
	sheetCols := r.schema.SheetColumns()
	ref := r.now()
	candidates := make(map[string]*candidate)
	var order []string

	for _, row := range rows {
		number := normalize.Identifier(row.Value(columns.IdentifierColumn))
		if number == "" {
			res.SkippedMissingNumber++
			continue
		}

		fields := make(map[string]*string, len(sheetCols)+2)
		nonEmpty := false
		for _, col := range sheetCols {
			if col == columns.IdentifierColumn {
				continue
			}
			value := cellString(row.Value(col))
			if value != nil {
				nonEmpty = true
			}
			fields[col] = value
		}
		if !nonEmpty {
			res.SkippedEmptyPayload++
			continue
		}

		if v := fields[columns.StatusDeliveryColumn]; v != nil {
			fields[columns.StatusDeliveryColumn] = normalize.StatusLabel(*v)
		}
		for _, col := range columns.DateColumns {
			if v := fields[col]; v != nil {
				formatted := normalize.FlexibleDate(*v, ref)
				fields[col] = &formatted
			}
		}
		sheetName := row.Sheet
		rowNumber := strconv.Itoa(row.Number)
		fields[columns.SheetColumn] = &sheetName
		fields[columns.RowColumn] = &rowNumber

		if _, dup := candidates[number]; dup {
			res.Duplicates++
			r.log.Warn("duplicate dn number in sheet, keeping last occurrence",
				"dn_number", number, "sheet", row.Sheet, "row", row.Number)
		} else {
			order = append(order, number)
		}
		candidates[number] = &candidate{number: number, fields: fields}
	}
	return candidates, order
}

// overlayHistory lets the latest API update win over the sheet for
// operational status fields. Nil history values leave the sheet value.
func overlayHistory(fields map[string]*string, rec repository.Record) {
	delivery := labelOf(rec.StatusDelivery)
	if delivery == nil {
		delivery = normalize.StatusLabel(rec.Status)
	}
	set := func(col string, value *string) {
		if value != nil {
			fields[col] = value
		}
	}
	set(columns.StatusDeliveryColumn, delivery)
	if strings.TrimSpace(rec.Status) != "" {
		status := rec.Status
		set("status", &status)
	}
	set("status_site", rec.StatusSite)
	set("remark", rec.Remark)
	set("photo_url", rec.PhotoURL)
	set("lng", rec.Lng)
	set("lat", rec.Lat)
}

// normalizeStored reformats stored dates and fills a blank status_delivery.
func (r *Reconciler) normalizeStored(dn repository.DN) repository.Payload {
	ref := r.now()
	changes := repository.Payload{}
	for _, col := range columns.DateColumns {
		v := dn.Field(col)
		if v == nil {
			continue
		}
		if formatted := normalize.FlexibleDate(*v, ref); formatted != *v {
			changes[col] = formatted
		}
	}
	if v := dn.Field(columns.StatusDeliveryColumn); v == nil || strings.TrimSpace(*v) == "" {
		changes[columns.StatusDeliveryColumn] = normalize.DefaultStatusLabel
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func labelOf(v *string) *string {
	if v == nil {
		return nil
	}
	return normalize.StatusLabel(*v)
}

func cellString(raw string) *string {
	v, ok := normalize.CellValue(raw).(string)
	if !ok {
		return nil
	}
	return &v
}

func storedValue(dn repository.DN, col string) *string {
	if col == columns.RowColumn {
		if dn.GSRow == nil {
			return nil
		}
		s := strconv.Itoa(*dn.GSRow)
		return &s
	}
	return dn.Field(col)
}

// equivalent treats nil and "" as equal and compares trimmed strings.
func equivalent(stored *string, value string) bool {
	current := ""
	if stored != nil {
		current = *stored
	}
	return strings.TrimSpace(current) == strings.TrimSpace(value)
}
