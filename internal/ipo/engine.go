package ipo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrFetchFailed marks a run aborted because an upstream source failed.
var ErrFetchFailed = errors.New("fetch failed")

// Recorder observes engine runs. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	ObserveRun(market string, report Report, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(string, Report, time.Duration, error) {}

// Engine orchestrates fetching, validation, classification, enrichment and
// report assembly for one market.
type Engine struct {
	Market      Market
	Sources     *SourceRegistry
	Enricher    Enricher
	HorizonDays int
	Location    *time.Location
	Now         func() time.Time
	Logger      zerolog.Logger
	Recorder    Recorder
}

// NewEngine constructs an Engine with default horizon, clock and timezone.
func NewEngine(market Market, sources *SourceRegistry, logger zerolog.Logger) (*Engine, error) {
	if sources == nil {
		return nil, errors.New("engine requires sources")
	}
	if market.ID == "" {
		return nil, errors.New("engine requires a market")
	}
	return &Engine{
		Market:      market,
		Sources:     sources,
		HorizonDays: DefaultHorizonDays,
		Location:    time.UTC,
		Now:         time.Now,
		Logger:      logger,
		Recorder:    nopRecorder{},
	}, nil
}

// RunOptions overrides engine defaults for a single run.
type RunOptions struct {
	HorizonDays int
	Enrich      *bool
}

// Run executes the end-to-end flow. Per-record problems are collected in
// the report's Diagnostics; only a failed fetch returns an error.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Report, error) {
	started := time.Now()
	horizon := e.HorizonDays
	if opts.HorizonDays > 0 {
		horizon = opts.HorizonDays
	}

	now := e.now()
	report := Report{
		RunID:       uuid.NewString(),
		Market:      e.Market.ID,
		GeneratedAt: now,
		Today:       FormatDate(Day(now)),
		HorizonDays: horizon,
		Current:     []Record{},
		Future:      []Record{},
	}
	logger := e.Logger.With().Str("run_id", report.RunID).Str("market", e.Market.ID).Logger()

	raws, err := e.Sources.FetchAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("fetch listings failed")
		err = fmt.Errorf("%w: %s listings: %w", ErrFetchFailed, e.Market.ID, err)
		e.recorder().ObserveRun(e.Market.ID, report, time.Since(started), err)
		return report, err
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		if raw.Market != "" && raw.Market != e.Market.ID {
			continue
		}
		records = append(records, Normalize(raw, e.Market))
	}

	valid, diag := Validate(records, e.Market)
	logger.Info().Int("kept", diag.Kept).Int("total", diag.Fetched).Msg("validated listings")

	cls, classifyDiag := Classify(valid, Day(now), horizon)
	diag.Merge(classifyDiag)

	if e.Enricher != nil && (opts.Enrich == nil || *opts.Enrich) {
		diag.Merge(e.enrich(ctx, logger, cls.Current))
		diag.Merge(e.enrich(ctx, logger, cls.Future))
	}

	if cls.Current != nil {
		report.Current = cls.Current
	}
	if cls.Future != nil {
		report.Future = cls.Future
	}
	report.Diagnostics = diag
	report.Markdown = Assemble(e.Market, cls, horizon, now)

	for _, entry := range diag.Entries {
		logger.Debug().
			Str("stage", string(entry.Stage)).
			Str("reason", string(entry.Reason)).
			Str("code", entry.Code).
			Str("detail", entry.Message).
			Msg("record skipped")
	}
	logger.Info().
		Int("subscribable", len(report.Current)).
		Int("future", len(report.Future)).
		Int("horizon_days", horizon).
		Dur("elapsed", time.Since(started)).
		Msg("listing report ready")

	e.recorder().ObserveRun(e.Market.ID, report, time.Since(started), nil)
	return report, nil
}

// enrich fills supplementary fields in place. Only empty industry and
// description fields are taken from the enricher, so classification inputs
// never change.
func (e *Engine) enrich(ctx context.Context, logger zerolog.Logger, records []Record) Diagnostics {
	var diag Diagnostics
	for i := range records {
		if ctx.Err() != nil {
			diag.Add(StageEnrich, ReasonEnrichmentFailed, records[i].Code, ctx.Err().Error())
			continue
		}
		scratch := records[i]
		if err := e.Enricher.Enrich(ctx, &scratch); err != nil {
			logger.Warn().Err(err).Str("code", records[i].Code).Msg("enrichment failed")
			diag.Add(StageEnrich, ReasonEnrichmentFailed, records[i].Code, err.Error())
			continue
		}
		if records[i].Details.Industry == "" {
			records[i].Details.Industry = scratch.Details.Industry
		}
		if records[i].Details.Description == "" {
			records[i].Details.Description = scratch.Details.Description
		}
	}
	return diag
}

func (e *Engine) now() time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func (e *Engine) recorder() Recorder {
	if e.Recorder == nil {
		return nopRecorder{}
	}
	return e.Recorder
}
