package ipo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{name: "iso", in: "2025-05-20", want: date(2025, 5, 20), ok: true},
		{name: "slashes", in: "2025/05/20", want: date(2025, 5, 20), ok: true},
		{name: "compact", in: "20250520", want: date(2025, 5, 20), ok: true},
		{name: "surrounding space", in: "  2025-05-20 ", want: date(2025, 5, 20), ok: true},
		{name: "timestamp suffix", in: "2025-05-20 00:00:00", want: date(2025, 5, 20), ok: true},
		{name: "two dates back to back", in: "2025-05-122025-05-15", want: date(2025, 5, 12), ok: true},
		{name: "empty", in: "", ok: false},
		{name: "placeholder", in: "--", ok: false},
		{name: "garbage", in: "tomorrow", ok: false},
		{name: "impossible day", in: "2025-02-30", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         string
		start, end time.Time
		ok         bool
	}{
		{name: "delimited", in: "2025-12-23至2025-12-24", start: date(2025, 12, 23), end: date(2025, 12, 24), ok: true},
		{name: "delimited with spaces", in: "2025-12-23 至 2025-12-24", start: date(2025, 12, 23), end: date(2025, 12, 24), ok: true},
		{name: "tilde", in: "2025/12/23~2025/12/24", start: date(2025, 12, 23), end: date(2025, 12, 24), ok: true},
		{name: "single date", in: "2025-05-20", start: date(2025, 5, 20), end: date(2025, 5, 20), ok: true},
		{name: "only right side parses", in: "--至2025-12-24", start: date(2025, 12, 24), end: date(2025, 12, 24), ok: true},
		{name: "only left side parses", in: "2025-12-23至--", ok: false},
		{name: "concatenated falls back to leading date", in: "2025-05-122025-05-15", start: date(2025, 5, 12), end: date(2025, 5, 12), ok: true},
		{name: "reversed", in: "2025-12-24至2025-12-23", ok: false},
		{name: "too many delimiters", in: "2025-12-23至2025-12-24至2025-12-25", ok: false},
		{name: "empty", in: "", ok: false},
		{name: "placeholder", in: "--", ok: false},
		{name: "garbage", in: "soon至later", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRange(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.start.Equal(got.Start), "start %s", got.Start)
				assert.True(t, tt.end.Equal(got.End), "end %s", got.End)
			}
		})
	}
}

func TestSplitConcatenated(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2025-05-12至2025-05-15", SplitConcatenated("2025-05-122025-05-15"))
	assert.Equal(t, "2025-05-12", SplitConcatenated("2025-05-12"))
	assert.Equal(t, "2025-05-12至2025-05-15", SplitConcatenated("2025-05-12至2025-05-15"))
	assert.Equal(t, "abcdefghijabcdefghij", SplitConcatenated("abcdefghijabcdefghij"))

	r, ok := ParseRange(SplitConcatenated("2025-05-122025-05-15"))
	require.True(t, ok)
	assert.True(t, date(2025, 5, 15).Equal(r.End))
}

func TestDayUsesLocalCalendar(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("CST", 8*3600)
	// 2025-05-19 20:30 UTC is already 2025-05-20 in Shanghai.
	instant := time.Date(2025, 5, 19, 20, 30, 0, 0, time.UTC).In(shanghai)
	assert.True(t, date(2025, 5, 20).Equal(Day(instant)))
}
