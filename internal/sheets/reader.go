package sheets

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"dn_tracker_backend/internal/dn/columns"
	"dn_tracker_backend/platform/logger"
)

// Reader pulls DN rows from every worksheet whose title starts with prefix.
type Reader struct {
	source Source
	schema Schema
	prefix string
	cache  *IDCache
	log    *logger.Logger
}

// NewReader creates a Reader. cache may be nil.
func NewReader(source Source, schema Schema, prefix string, cache *IDCache, log *logger.Logger) *Reader {
	return &Reader{source: source, schema: schema, prefix: prefix, cache: cache, log: log}
}

// ListCandidateSheets returns the in-scope worksheets in spreadsheet order.
// The ID cache is refreshed from the full worksheet list.
func (r *Reader) ListCandidateSheets(ctx context.Context) ([]Worksheet, error) {
	all, err := r.source.ListWorksheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	if r.cache != nil {
		r.cache.Refresh(all)
	}

	candidates := make([]Worksheet, 0, len(all))
	for _, ws := range all {
		if strings.HasPrefix(ws.Title, r.prefix) {
			candidates = append(candidates, ws)
		}
	}
	return candidates, nil
}

// ReadSheetRows reads ws below the header rows and aligns every row to the
// column schema. Short rows are padded with "" and long rows truncated.
func (r *Reader) ReadSheetRows(ctx context.Context, ws Worksheet) ([]Row, error) {
	schema := r.schema.SheetColumns()
	if !slices.Contains(schema, columns.IdentifierColumn) {
		return nil, fmt.Errorf("%w: %s not in column schema", ErrSchemaMismatch, columns.IdentifierColumn)
	}

	values, err := r.source.ReadAll(ctx, ws.Title)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", ws.Title, err)
	}
	if len(values) <= HeaderRows {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(values)-HeaderRows)
	for i, raw := range values[HeaderRows:] {
		cells := make(map[string]string, len(schema))
		for col, name := range schema {
			if col < len(raw) {
				cells[name] = raw[col]
			} else {
				cells[name] = ""
			}
		}
		rows = append(rows, Row{
			Sheet:  ws.Title,
			Number: HeaderRows + i + 1,
			Values: cells,
		})
	}
	return rows, nil
}

// CombineSheets concatenates the rows of every candidate sheet. It returns
// an empty slice when no sheet matches the prefix.
func (r *Reader) CombineSheets(ctx context.Context) ([]Row, error) {
	candidates, err := r.ListCandidateSheets(ctx)
	if err != nil {
		return nil, err
	}

	combined := []Row{}
	for _, ws := range candidates {
		rows, err := r.ReadSheetRows(ctx, ws)
		if err != nil {
			return nil, err
		}
		r.log.Debug("read worksheet", "sheet", ws.Title, "rows", len(rows))
		combined = append(combined, rows...)
	}
	if len(candidates) == 0 {
		r.log.Warn("no worksheets match prefix", "prefix", r.prefix)
	}
	return combined, nil
}
