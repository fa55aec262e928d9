package normalize

import (
	"strings"
	"time"
)

// DisplayLayout is the canonical stored form of sheet dates, e.g. "05 Mar 24".
const DisplayLayout = "02 Jan 06"

// yearless layouts carry no year and take the reference year instead.
const yearlessLayout = "2Jan"

var monthReplacer = strings.NewReplacer(
	"Sept", "Sep", "SEPT", "Sep", "sept", "Sep",
	"Okt", "Oct", "OKT", "Oct", "okt", "Oct",
)

var dateLayouts = []string{
	"2 Jan 06",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	yearlessLayout,
	"2006/1/2",
	"2006-01-02",
	"02-01-2006",
}

// ParseFlexibleDate tries each known sheet date layout in order. Day-month
// values without a year use the year of ref.
func ParseFlexibleDate(raw string, ref time.Time) (time.Time, bool) {
	value := strings.TrimSpace(monthReplacer.Replace(raw))
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if layout == yearlessLayout {
			t = time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, true
	}
	return time.Time{}, false
}

// FlexibleDate reformats raw to DisplayLayout when it parses and returns it
// unchanged otherwise.
func FlexibleDate(raw string, ref time.Time) string {
	t, ok := ParseFlexibleDate(raw, ref)
	if !ok {
		return raw
	}
	return DisplayDate(t)
}

// DisplayDate formats t as DisplayLayout.
func DisplayDate(t time.Time) string {
	return t.Format(DisplayLayout)
}
