package ipo

import (
	"strings"
	"time"
)

const (
	rangeDelimiter = "至"
	isoDateLen     = 10
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

// rangeDelimiters separate the two ends of a window string.
var rangeDelimiters = []string{rangeDelimiter, "～", "~"}

// placeholders are upstream spellings of "not available".
var placeholders = map[string]struct{}{
	"--":  {},
	"-":   {},
	"—":   {},
	"N/A": {},
	"n/a": {},
	"待定":  {},
	"nan": {},
	"NaN": {},
	"NaT": {},
}

// cleanValue trims s and maps placeholders to the empty string.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := placeholders[s]; ok {
		return ""
	}
	return s
}

// ParseDate parses a single calendar date. When the whole string does not
// parse, a leading ISO-length prefix is tried so that values such as
// "2025-05-20 00:00:00" or two dates written back to back still yield the
// first date.
func ParseDate(s string) (time.Time, bool) {
	s = cleanValue(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, ok := parseLayouts(s); ok {
		return d, true
	}
	if len(s) > isoDateLen {
		if d, ok := parseLayouts(s[:isoDateLen]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseRange parses a subscription window such as "2025-12-23至2025-12-24".
// A lone date becomes a zero-width window. When only the right-hand side of
// a delimited range parses it is used for both ends. Reversed or otherwise
// unusable input reports false.
func ParseRange(s string) (DateRange, bool) {
	s = cleanValue(s)
	if s == "" {
		return DateRange{}, false
	}

	if left, right, found := splitRange(s); found {
		end, ok := ParseDate(right)
		if !ok {
			return DateRange{}, false
		}
		start, ok := ParseDate(left)
		if !ok {
			start = end
		}
		if start.After(end) {
			return DateRange{}, false
		}
		return DateRange{Start: start, End: end}, true
	}

	d, ok := ParseDate(s)
	if !ok {
		return DateRange{}, false
	}
	return DateRange{Start: d, End: d}, true
}

func splitRange(s string) (string, string, bool) {
	for _, delim := range rangeDelimiters {
		if !strings.Contains(s, delim) {
			continue
		}
		parts := strings.Split(s, delim)
		if len(parts) != 2 {
			// Delimited but malformed: report found with an empty right side.
			return "", "", true
		}
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
	}
	return "", "", false
}

// SplitConcatenated turns two ISO dates written back to back
// ("2025-05-122025-05-15") into a delimited range. Other input is returned
// unchanged.
func SplitConcatenated(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 2*isoDateLen {
		return s
	}
	left, right := s[:isoDateLen], s[isoDateLen:]
	if _, ok := parseLayouts(left); !ok {
		return s
	}
	if _, ok := parseLayouts(right); !ok {
		return s
	}
	return left + rangeDelimiter + right
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Day truncates t to its calendar day in t's own location and returns that
// day as a UTC midnight, comparable with parsed dates.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
