// Package normalize turns raw spreadsheet cells and API input into the
// canonical forms stored for DNs. Every function here is pure.
package normalize

import (
	"errors"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ErrMissingNumber is returned when a batch contains no usable DN number.
var ErrMissingNumber = errors.New("Missing dn_number")

var invisibleReplacer = strings.NewReplacer("\u200b", "", "\ufeff", "")

// Identifier normalizes a DN or DU number: zero-width and BOM removal,
// width folding, trimming, uppercasing and NFC composition. Composition must
// come after folding: folded half-width kana carry combining voicing marks.
// It is idempotent.
func Identifier(raw string) string {
	if raw == "" {
		return ""
	}
	s := invisibleReplacer.Replace(raw)
	s = width.Fold.String(s)
	s = strings.ToUpper(strings.TrimSpace(s))
	return norm.NFC.String(s)
}

// CellValue collapses a raw sheet cell. Strings are trimmed and blank strings
// become nil. NaN floats become nil. Anything else passes through.
func CellValue(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return trimmed
	case float64:
		if math.IsNaN(v) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(v)) {
			return nil
		}
	}
	return raw
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// BatchNumbers splits every value on commas, normalizes each part and
// removes blanks and duplicates, keeping first-seen order.
func BatchNumbers(values ...string) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			number := Identifier(part)
			if number == "" {
				continue
			}
			if _, dup := seen[number]; dup {
				continue
			}
			seen[number] = struct{}{}
			out = append(out, number)
		}
	}
	if len(out) == 0 {
		return nil, ErrMissingNumber
	}
	return out, nil
}

// QueryValues merges query parameters, splitting on commas and dropping
// blanks and repeats. Values are trimmed but otherwise left as given.
// Returns nil when nothing remains.
func QueryValues(values ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if _, dup := seen[trimmed]; dup {
				continue
			}
			seen[trimmed] = struct{}{}
			out = append(out, trimmed)
		}
	}
	return out
}
