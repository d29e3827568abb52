package ipo

import "sort"

// Groups buckets records by the ISO date of their grouping date. Map
// iteration order is unspecified; use Keys for presentation order.
type Groups map[string][]Record

// GroupByDate buckets records under the market's grouping date. Records
// keep their input order inside a bucket. Records without a grouping date
// are left out of the grouped view.
func GroupByDate(records []Record, market Market) Groups {
	groups := make(Groups)
	for _, rec := range records {
		if market.GroupingDate == nil {
			continue
		}
		d, ok := market.GroupingDate(rec)
		if !ok {
			continue
		}
		key := FormatDate(d)
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// Keys returns the group keys in ascending date order.
func (g Groups) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len counts the grouped records.
func (g Groups) Len() int {
	n := 0
	for _, recs := range g {
		n += len(recs)
	}
	return n
}
