package ipo

import (
	"sort"
	"time"
)

// DefaultHorizonDays is how far ahead Classify looks for opening windows.
const DefaultHorizonDays = 14

// Classify splits valid records into those subscribable on today and those
// whose window opens within horizonDays after today. A window that opens on
// today is current, never future. Records without a usable window are left
// out of both sets and noted in the returned Diagnostics.
//
// Both sets are ordered by primary date ascending; a missing primary date
// sorts first and ties keep their input order.
func Classify(records []Record, today time.Time, horizonDays int) (Classification, Diagnostics) {
	if horizonDays < 0 {
		horizonDays = 0
	}
	day := Day(today)
	limit := day.AddDate(0, 0, horizonDays)

	var (
		out  Classification
		diag Diagnostics
	)

	for _, rec := range records {
		if rec.Window == nil {
			if rec.WindowRaw != "" {
				diag.Add(StageClassify, ReasonUnparseableWindow, rec.Code, rec.WindowRaw)
			} else {
				diag.Add(StageClassify, ReasonNoWindow, rec.Code, "")
			}
			continue
		}

		w := *rec.Window
		switch {
		case w.Contains(day):
			out.Current = append(out.Current, rec)
		case w.Start.After(day) && !w.Start.After(limit):
			out.Future = append(out.Future, rec)
		}
	}

	sortByPrimaryDate(out.Current)
	sortByPrimaryDate(out.Future)
	return out, diag
}

func sortByPrimaryDate(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return sortKey(records[i]).Before(sortKey(records[j]))
	})
}

// sortKey treats a missing primary date as the earliest possible date.
func sortKey(r Record) time.Time {
	if r.PrimaryDate == nil {
		return time.Time{}
	}
	return *r.PrimaryDate
}
