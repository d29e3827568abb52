package ipo

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Source defines a pluggable upstream provider of raw listing records.
// A Source returns an error only when the whole fetch failed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

// Enricher fills supplementary fields of a single record. Failures are
// per-record and never abort a run.
type Enricher interface {
	Enrich(ctx context.Context, rec *Record) error
}

// EnricherFunc adapts a function to Enricher.
type EnricherFunc func(ctx context.Context, rec *Record) error

// Enrich calls f.
func (f EnricherFunc) Enrich(ctx context.Context, rec *Record) error { return f(ctx, rec) }

// SourceRegistry keeps track of the sources feeding one market.
type SourceRegistry struct {
	sources []Source
}

// NewSourceRegistry builds a registry with the provided sources.
func NewSourceRegistry(sources ...Source) (*SourceRegistry, error) {
	if len(sources) == 0 {
		return nil, errors.New("ipo: at least one source is required")
	}
	return &SourceRegistry{sources: sources}, nil
}

// Add registers a new source instance.
func (r *SourceRegistry) Add(source Source) {
	r.sources = append(r.sources, source)
}

// Names lists the registered source names in order.
func (r *SourceRegistry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		names = append(names, src.Name())
	}
	return names
}

// FetchAll concatenates the records of every registered source. The first
// failing source fails the whole fetch.
func (r *SourceRegistry) FetchAll(ctx context.Context) ([]RawRecord, error) {
	var results []RawRecord
	for _, src := range r.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch from %s: %w", src.Name(), err)
		}
		results = append(results, items...)
	}
	return results, nil
}

// StaticFileSource serves raw records from a JSON file.
type StaticFileSource struct {
	name string
	path string
}

// NewStaticFileSource returns a new StaticFileSource referencing the given file.
func NewStaticFileSource(name, path string) (*StaticFileSource, error) {
	if name == "" {
		return nil, errors.New("static source requires a name")
	}
	if path == "" {
		return nil, errors.New("static source requires a path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("static source: %w", err)
	}
	return &StaticFileSource{name: name, path: path}, nil
}

// Name returns the source name.
func (s *StaticFileSource) Name() string { return s.name }

// Fetch reads and decodes the JSON file.
func (s *StaticFileSource) Fetch(ctx context.Context) ([]RawRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read static file %s: %w", s.path, err)
	}

	items, err := decodeRawRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("decode static file %s: %w", s.path, err)
	}
	return items, nil
}
