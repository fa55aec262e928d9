package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// GoogleSource is a Source and Annotator backed by the Google Sheets API.
// Every worksheet listing refreshes its ID cache.
type GoogleSource struct {
	svc           *gsheets.Service
	spreadsheetID string
	cache         *IDCache
}

// NewGoogleSource authenticates with a service account credentials JSON.
// cache may be nil, in which case a private one is used.
func NewGoogleSource(ctx context.Context, credentialsJSON, spreadsheetID string, cache *IDCache) (*GoogleSource, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if cache == nil {
		cache = NewIDCache(spreadsheetID)
	}
	return &GoogleSource{svc: svc, spreadsheetID: spreadsheetID, cache: cache}, nil
}

func (g *GoogleSource) ListWorksheets(ctx context.Context) ([]Worksheet, error) {
	resp, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make([]Worksheet, 0, len(resp.Sheets))
	for _, sheet := range resp.Sheets {
		props := sheet.Properties
		if props == nil {
			continue
		}
		ws := Worksheet{ID: props.SheetId, Title: props.Title, Index: int(props.Index)}
		if props.GridProperties != nil {
			ws.ColumnCount = int(props.GridProperties.ColumnCount)
		}
		out = append(out, ws)
	}

	g.cache.Refresh(out)
	return out, nil
}

func (g *GoogleSource) ReadAll(ctx context.Context, title string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, quoteTitle(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapNotFound(err, title)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = stringify(row)
	}
	return out, nil
}

func (g *GoogleSource) ReadCell(ctx context.Context, title string, row, col int) (string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, cellRange(title, row, col)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapNotFound(err, title)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

func (g *GoogleSource) WriteCell(ctx context.Context, title string, row, col int, value string) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, cellRange(title, row, col), &gsheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return wrapNotFound(err, title)
}

func (g *GoogleSource) ReadColumn(ctx context.Context, title string, col int) ([]string, error) {
	letter := ColumnLetter(col)
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, fmt.Sprintf("%s!%s:%s", quoteTitle(title), letter, letter)).
		MajorDimension("COLUMNS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapNotFound(err, title)
	}
	if len(resp.Values) == 0 {
		return []string{}, nil
	}
	return stringify(resp.Values[0]), nil
}

func (g *GoogleSource) AnnotateCell(ctx context.Context, title string, row, col int, note string) error {
	sheetID, err := g.sheetID(ctx, title)
	if err != nil {
		return err
	}
	return g.batchUpdate(ctx, []*gsheets.Request{{
		RepeatCell: &gsheets.RepeatCellRequest{
			Range:  gridRange(sheetID, row-1, row, col-1, col),
			Cell:   &gsheets.CellData{Note: note},
			Fields: "note",
		},
	}})
}

func (g *GoogleSource) ShadeRows(ctx context.Context, title string, rows []int, color Color) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := g.sheetID(ctx, title)
	if err != nil {
		return err
	}
	requests := make([]*gsheets.Request, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, &gsheets.Request{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: wholeRow(sheetID, row-1),
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{
						TextFormat: &gsheets.TextFormat{
							ForegroundColor: &gsheets.Color{Red: color.Red, Green: color.Green, Blue: color.Blue},
						},
					},
				},
				Fields: "userEnteredFormat.textFormat.foregroundColor",
			},
		})
	}
	return g.batchUpdate(ctx, requests)
}

func (g *GoogleSource) batchUpdate(ctx context.Context, requests []*gsheets.Request) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func (g *GoogleSource) sheetID(ctx context.Context, title string) (int64, error) {
	if id, ok := g.cache.Lookup(title); ok {
		return id, nil
	}
	if _, err := g.ListWorksheets(ctx); err != nil {
		return 0, err
	}
	if id, ok := g.cache.Lookup(title); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrWorksheetNotFound, title)
}

// ColumnLetter converts a 1-based column index to its A1 letters.
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func cellRange(title string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", quoteTitle(title), ColumnLetter(col), row)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func gridRange(sheetID int64, startRow, endRow, startCol, endCol int) *gsheets.GridRange {
	return &gsheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(startRow),
		EndRowIndex:      int64(endRow),
		StartColumnIndex: int64(startCol),
		EndColumnIndex:   int64(endCol),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func wholeRow(sheetID int64, startRow int) *gsheets.GridRange {
	return &gsheets.GridRange{
		SheetId:         sheetID,
		StartRowIndex:   int64(startRow),
		EndRowIndex:     int64(startRow + 1),
		ForceSendFields: []string{"SheetId", "StartRowIndex"},
	}
}

func stringify(row []interface{}) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		if cell != nil {
			out[i] = fmt.Sprint(cell)
		}
	}
	return out
}

func wrapNotFound(err error, title string) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, title)
	}
	return err
}

var (
	_ Source    = (*GoogleSource)(nil)
	_ Annotator = (*GoogleSource)(nil)
)
