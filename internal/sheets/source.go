// Package sheets reads DN rows from the planning spreadsheet and writes
// driver status changes back to it.
package sheets

import (
	"context"
	"errors"
)

var (
	// ErrSchemaMismatch means a column the sheet layer depends on is missing
	// from the column schema. It is a configuration error and is not retried.
	ErrSchemaMismatch = errors.New("sheet column schema mismatch")
	// ErrWorksheetNotFound is returned when a worksheet title does not exist.
	ErrWorksheetNotFound = errors.New("worksheet not found")
)

// HeaderRows is the number of title and header rows above the first DN row.
const HeaderRows = 3

// Worksheet describes one tab of the spreadsheet.
type Worksheet struct {
	ID          int64
	Title       string
	Index       int
	ColumnCount int
}

// Source is a tabular data source. Rows and columns are 1-based and rows
// include the header rows.
type Source interface {
	ListWorksheets(ctx context.Context) ([]Worksheet, error)
	ReadAll(ctx context.Context, title string) ([][]string, error)
	ReadCell(ctx context.Context, title string, row, col int) (string, error)
	WriteCell(ctx context.Context, title string, row, col int, value string) error
	ReadColumn(ctx context.Context, title string, col int) ([]string, error)
}

// Color is an RGB color with components in [0, 1].
type Color struct {
	Red   float64
	Green float64
	Blue  float64
}

// ArchiveColor greys out archived rows.
var ArchiveColor = Color{Red: 0.6, Green: 0.6, Blue: 0.6}

// Annotator is implemented by sources that can attach notes and formatting.
type Annotator interface {
	AnnotateCell(ctx context.Context, title string, row, col int, note string) error
	ShadeRows(ctx context.Context, title string, rows []int, color Color) error
}

// Schema exposes the column layout shared by the reader and the writer.
type Schema interface {
	SheetColumns() []string
	Position(name string) int
}

// Row is one DN row aligned to the column schema.
type Row struct {
	Sheet  string
	Number int
	Values map[string]string
}

// Value returns the cell for column, or "" when absent.
func (r Row) Value(column string) string {
	return r.Values[column]
}
