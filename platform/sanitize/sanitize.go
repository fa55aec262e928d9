// Package sanitize cleans free text submitted by drivers and planners
// before it is stored or written back to the spreadsheet.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	controlRunRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]+`)
	entityReplacer  = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'")
)

// StripHTML removes HTML tags, decodes common entities and strips tags that
// were hidden behind entity encoding.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips markup and control characters. Newlines and tabs survive so
// multi-line remarks keep their shape in the sheet cell.
func Text(s string) string {
	return controlRunRegex.ReplaceAllString(StripHTML(s), "")
}

// Remark sanitizes an optional remark and truncates it to maxRunes.
// Blank input yields nil.
func Remark(s *string, maxRunes int) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	if maxRunes > 0 && utf8.RuneCountInString(result) > maxRunes {
		result = string([]rune(result)[:maxRunes])
	}
	return &result
}
