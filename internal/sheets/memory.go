package sheets

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemorySource is an in-memory Source and Annotator. It backs tests and
// offline runs of the CLI.
type MemorySource struct {
	mu     sync.Mutex
	sheets []*memorySheet
	nextID int64
	fail   error

	// Writes counts successful WriteCell calls.
	Writes int
}

type memorySheet struct {
	ws     Worksheet
	rows   [][]string
	notes  map[[2]int]string
	shaded map[int]Color
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// AddWorksheet appends a worksheet holding rows, header rows included.
func (m *MemorySource) AddWorksheet(title string, rows [][]string) Worksheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	ws := Worksheet{ID: m.nextID, Title: title, Index: len(m.sheets), ColumnCount: width}
	m.nextID++
	m.sheets = append(m.sheets, &memorySheet{
		ws:     ws,
		rows:   cloneRows(rows),
		notes:  make(map[[2]int]string),
		shaded: make(map[int]Color),
	})
	return ws
}

// InsertRow inserts values before the 1-based row at, shifting later rows down.
func (m *MemorySource) InsertRow(title string, at int, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, err := m.find(title)
	if err != nil {
		return err
	}
	idx := min(max(at-1, 0), len(sheet.rows))
	sheet.rows = slices.Insert(sheet.rows, idx, slices.Clone(values))
	return nil
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemorySource) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Rows returns a copy of the worksheet's cells.
func (m *MemorySource) Rows(title string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, err := m.find(title)
	if err != nil {
		return nil
	}
	return cloneRows(sheet.rows)
}

// Note returns the note attached to a cell.
func (m *MemorySource) Note(title string, row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, err := m.find(title)
	if err != nil {
		return ""
	}
	return sheet.notes[[2]int{row, col}]
}

// Shaded returns the shaded rows of a worksheet in ascending order.
func (m *MemorySource) Shaded(title string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, err := m.find(title)
	if err != nil {
		return nil
	}
	rows := make([]int, 0, len(sheet.shaded))
	for row := range sheet.shaded {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

func (m *MemorySource) ListWorksheets(ctx context.Context) ([]Worksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	out := make([]Worksheet, 0, len(m.sheets))
	for _, sheet := range m.sheets {
		out = append(out, sheet.ws)
	}
	return out, nil
}

func (m *MemorySource) ReadAll(ctx context.Context, title string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	sheet, err := m.find(title)
	if err != nil {
		return nil, err
	}
	return cloneRows(sheet.rows), nil
}

func (m *MemorySource) ReadCell(ctx context.Context, title string, row, col int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return "", err
	}
	sheet, err := m.find(title)
	if err != nil {
		return "", err
	}
	if row < 1 || row > len(sheet.rows) || col < 1 || col > len(sheet.rows[row-1]) {
		return "", nil
	}
	return sheet.rows[row-1][col-1], nil
}

func (m *MemorySource) WriteCell(ctx context.Context, title string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	sheet, err := m.find(title)
	if err != nil {
		return err
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	for len(sheet.rows) < row {
		sheet.rows = append(sheet.rows, nil)
	}
	for len(sheet.rows[row-1]) < col {
		sheet.rows[row-1] = append(sheet.rows[row-1], "")
	}
	sheet.rows[row-1][col-1] = value
	m.Writes++
	return nil
}

func (m *MemorySource) ReadColumn(ctx context.Context, title string, col int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	sheet, err := m.find(title)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sheet.rows))
	for i, row := range sheet.rows {
		if col >= 1 && col <= len(row) {
			out[i] = row[col-1]
		}
	}
	return out, nil
}

func (m *MemorySource) AnnotateCell(ctx context.Context, title string, row, col int, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	sheet, err := m.find(title)
	if err != nil {
		return err
	}
	sheet.notes[[2]int{row, col}] = note
	return nil
}

func (m *MemorySource) ShadeRows(ctx context.Context, title string, rows []int, color Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	sheet, err := m.find(title)
	if err != nil {
		return err
	}
	for _, row := range rows {
		sheet.shaded[row] = color
	}
	return nil
}

func (m *MemorySource) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.fail
}

func (m *MemorySource) find(title string) (*memorySheet, error) {
	for _, sheet := range m.sheets {
		if sheet.ws.Title == title {
			return sheet, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, title)
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}
	return out
}

var (
	_ Source    = (*MemorySource)(nil)
	_ Annotator = (*MemorySource)(nil)
)
