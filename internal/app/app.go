// Package app assembles market engines from configuration.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"ipowatch/internal/config"
	"ipowatch/internal/ipo"
	"ipowatch/internal/metrics"
	"ipowatch/internal/upstream"
)

// Version is set via ldflags during build.
var Version = "dev"

// NewClient builds the shared upstream client from configuration.
func NewClient(cfg config.Config, logger zerolog.Logger) *upstream.Client {
	return upstream.NewClient(
		upstream.WithTimeout(cfg.Upstream.FetchTimeout),
		upstream.WithMinInterval(cfg.Upstream.MinInterval),
		upstream.WithMaxRetries(cfg.Upstream.MaxRetries),
		upstream.WithLogger(logger.With().Str("component", "upstream").Logger()),
	)
}

// NewEngine builds the engine of one market. A configured static file
// replaces the live upstream; extra sources are appended either way.
func NewEngine(cfg config.Config, market ipo.Market, client *upstream.Client, logger zerolog.Logger, extra ...ipo.Source) (*ipo.Engine, error) {
	primary, enricher, err := marketSource(cfg, market, client, logger)
	if err != nil {
		return nil, err
	}

	registry, err := ipo.NewSourceRegistry(primary)
	if err != nil {
		return nil, err
	}
	for _, src := range extra {
		registry.Add(src)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	engine, err := ipo.NewEngine(market, registry, logger.With().Str("component", "engine").Logger())
	if err != nil {
		return nil, err
	}
	engine.HorizonDays = cfg.FutureDays
	engine.Location = loc
	engine.Recorder = metrics.Recorder{}
	if cfg.Enrich {
		engine.Enricher = enricher
	}

	logger.Info().Str("market", market.ID).Strs("sources", registry.Names()).Bool("enrich", engine.Enricher != nil).Msg("engine ready")
	return engine, nil
}

// NewEngines builds one engine per supported market.
func NewEngines(cfg config.Config, logger zerolog.Logger, extra ...ipo.Source) ([]*ipo.Engine, error) {
	client := NewClient(cfg, logger)
	var engines []*ipo.Engine
	for _, market := range []ipo.Market{ipo.Mainland(), ipo.HongKong()} {
		engine, err := NewEngine(cfg, market, client, logger, extra...)
		if err != nil {
			return nil, fmt.Errorf("init %s engine: %w", market.ID, err)
		}
		engines = append(engines, engine)
	}
	return engines, nil
}

func marketSource(cfg config.Config, market ipo.Market, client *upstream.Client, logger zerolog.Logger) (ipo.Source, ipo.Enricher, error) {
	static := cfg.Upstream.StaticMainlandPath
	if market.ID == ipo.MarketHongKong {
		static = cfg.Upstream.StaticHongKongPath
	}
	if static != "" {
		src, err := ipo.NewStaticFileSource("static-"+market.ID, static)
		return src, nil, err
	}

	switch market.ID {
	case ipo.MarketMainland:
		src, err := upstream.NewCninfoSource(client, cfg.Upstream.CninfoURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, upstream.NewCninfoProfileEnricher(client, cfg.Upstream.CninfoProfileURL, logger), nil
	case ipo.MarketHongKong:
		src, err := upstream.NewSinaSource(client, cfg.Upstream.SinaListURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, upstream.NewSinaDetailEnricher(client, cfg.Upstream.SinaDetailURL, logger), nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ipo.ErrUnknownMarket, market.ID)
	}
}
