package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/platform/apperr"
	"dn_tracker_backend/platform/logger"
)

// archiveFlushSize bounds the rows shaded per formatting request.
const archiveFlushSize = 90

// ArchivedRow is one row matched by the archive marker.
type ArchivedRow struct {
	Sheet          string `json:"sheet"`
	Row            int    `json:"row"`
	PlanMOSDate    string `json:"planMosDate"`
	StatusDelivery string `json:"statusDelivery"`
	Formatted      bool   `json:"formatted"`
}

// ArchiveResult summarizes an archive marking pass.
type ArchiveResult struct {
	ThresholdDays   int           `json:"thresholdDays"`
	ThresholdDate   string        `json:"thresholdDate"`
	MatchedRows     int           `json:"matchedRows"`
	FormattedRows   int           `json:"formattedRows"`
	SheetsProcessed []string      `json:"sheetsProcessed"`
	AffectedRows    []ArchivedRow `json:"affectedRows"`
}

// ArchiveMarker greys out delivered rows whose plan date has passed.
type ArchiveMarker struct {
	reader *Reader
	source Source
	schema Schema
	log    *logger.Logger
}

// NewArchiveMarker creates an ArchiveMarker over the reader's candidate sheets.
func NewArchiveMarker(reader *Reader, source Source, schema Schema, log *logger.Logger) *ArchiveMarker {
	return &ArchiveMarker{reader: reader, source: source, schema: schema, log: log}
}

// Mark shades every POD row planned before now minus thresholdDays (GMT+7).
// Sources without formatting support still report matched rows.
func (a *ArchiveMarker) Mark(ctx context.Context, thresholdDays int, now time.Time) (ArchiveResult, error) {
	if thresholdDays < 0 {
		return ArchiveResult{}, apperr.Validation("threshold_days must be non-negative")
	}
	if a.schema.Position(columns.PlanDateColumn) == 0 || a.schema.Position(columns.StatusDeliveryColumn) == 0 {
		return ArchiveResult{}, fmt.Errorf("%w: plan_mos_date and status_delivery are required", ErrSchemaMismatch)
	}

	local := now.In(GMT7)
	threshold := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -thresholdDays)
	result := ArchiveResult{
		ThresholdDays:   thresholdDays,
		ThresholdDate:   threshold.Format("2006-01-02"),
		SheetsProcessed: []string{},
		AffectedRows:    []ArchivedRow{},
	}
	a.log.Info("marking rows for archiving", "before", result.ThresholdDate, "status_delivery", "POD")

	candidates, err := a.reader.ListCandidateSheets(ctx)
	if err != nil {
		return result, err
	}
	annotator, canShade := a.source.(Annotator)

	for _, ws := range candidates {
		result.SheetsProcessed = append(result.SheetsProcessed, ws.Title)
		rows, err := a.reader.ReadSheetRows(ctx, ws)
		if err != nil {
			return result, err
		}

		var pending []int
		for _, row := range rows {
			plan := strings.TrimSpace(row.Value(columns.PlanDateColumn))
			if plan == "" {
				continue
			}
			planDate, ok := normalize.ParseFlexibleDate(plan, local)
			if !ok || !planDate.Before(threshold) {
				continue
			}
			status := row.Value(columns.StatusDeliveryColumn)
			if strings.ToUpper(strings.TrimSpace(status)) != "POD" {
				continue
			}

			result.MatchedRows++
			entry := ArchivedRow{Sheet: ws.Title, Row: row.Number, PlanMOSDate: plan, StatusDelivery: status}
			if canShade && ws.ColumnCount > 0 {
				entry.Formatted = true
				pending = append(pending, row.Number)
			}
			result.AffectedRows = append(result.AffectedRows, entry)

			if len(pending) >= archiveFlushSize {
				if err := annotator.ShadeRows(ctx, ws.Title, pending, ArchiveColor); err != nil {
					return result, fmt.Errorf("shade rows on %q: %w", ws.Title, err)
				}
				result.FormattedRows += len(pending)
				pending = nil
			}
		}
		if len(pending) > 0 {
			if err := annotator.ShadeRows(ctx, ws.Title, pending, ArchiveColor); err != nil {
				return result, fmt.Errorf("shade rows on %q: %w", ws.Title, err)
			}
			result.FormattedRows += len(pending)
		}
	}

	a.log.Info("archive marking complete", "matched", result.MatchedRows, "formatted", result.FormattedRows)
	return result, nil
}
