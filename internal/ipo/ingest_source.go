package ipo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// IngestSource stores ad-hoc raw records submitted via the API. It serves
// every market; the engine keeps only the records tagged for its market.
type IngestSource struct {
	name  string
	mu    sync.RWMutex
	items []RawRecord
}

// NewIngestSource constructs an empty ingest source.
func NewIngestSource(name string) *IngestSource {
	if name == "" {
		name = "ingest"
	}
	return &IngestSource{name: name}
}

// Name returns the source identifier.
func (s *IngestSource) Name() string { return s.name }

// Add registers a record, replacing an existing one with the same market
// and code. It reports whether a record was replaced.
func (s *IngestSource) Add(item RawRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.items {
		if s.items[idx].Market == item.Market && s.items[idx].Code == item.Code {
			s.items[idx] = item
			return true
		}
	}

	s.items = append(s.items, item)
	return false
}

// Len returns the number of stored records.
func (s *IngestSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Fetch returns a snapshot of the stored records ordered by market and code.
func (s *IngestSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RawRecord, len(s.items))
	copy(out, s.items)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Market != out[j].Market {
			return out[i].Market < out[j].Market
		}
		return out[i].Code < out[j].Code
	})

	return out, nil
}

// PruneOlderThan drops records whose window (or primary date, when there is
// no window) ended before day and returns the number of removed entries.
// Records without any parseable date are kept.
func (s *IngestSource) PruneOlderThan(day time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return 0
	}

	cutoff := Day(day)
	filtered := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if last, ok := lastRelevantDay(item); ok && last.Before(cutoff) {
			removed++
			continue
		}
		filtered = append(filtered, item)
	}
	s.items = filtered
	return removed
}

func lastRelevantDay(item RawRecord) (time.Time, bool) {
	if r, ok := ParseRange(item.Window); ok {
		return r.End, true
	}
	return ParseDate(item.PrimaryDate)
}
