package sheets

import (
	"fmt"
	"sync"
)

// IDCache maps worksheet titles to grid IDs for deep links into the sheet.
// It is refreshed explicitly whenever worksheets are listed.
type IDCache struct {
	spreadsheetID string

	mu  sync.RWMutex
	ids map[string]int64
}

// NewIDCache creates an empty cache for one spreadsheet.
func NewIDCache(spreadsheetID string) *IDCache {
	return &IDCache{spreadsheetID: spreadsheetID, ids: make(map[string]int64)}
}

// Refresh replaces the cached mapping with worksheets.
func (c *IDCache) Refresh(worksheets []Worksheet) {
	ids := make(map[string]int64, len(worksheets))
	for _, ws := range worksheets {
		ids[ws.Title] = ws.ID
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

// Lookup returns the grid ID of title.
func (c *IDCache) Lookup(title string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[title]
	return id, ok
}

// CellURL links to column A of row on the worksheet titled title.
// It returns "" when the worksheet is unknown.
func (c *IDCache) CellURL(title string, row int) string {
	if c == nil || title == "" || row <= 0 {
		return ""
	}
	gid, ok := c.Lookup(title)
	if !ok {
		return ""
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d&range=A%d", c.spreadsheetID, gid, row)
}
