package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"ipowatch/internal/ipo"
)

// Column layout of the Sina HK IPO list table.
const (
	colCode = iota
	colName
	colPriceRange
	colOfferShares
	colRaisedMillions
	colSubscription
	colListing
	minColumns
)

// footnoteMarker flags table rows that carry notes instead of listings.
const footnoteMarker = "注"

// SinaSource scrapes the Hong Kong IPO list published by Sina Finance.
type SinaSource struct {
	client *Client
	url    string
	logger zerolog.Logger
}

// NewSinaSource builds the HK source against the list page URL.
func NewSinaSource(client *Client, listURL string, logger zerolog.Logger) (*SinaSource, error) {
	if client == nil {
		return nil, errors.New("sina source requires a client")
	}
	if listURL == "" {
		return nil, errors.New("sina source requires a list url")
	}
	return &SinaSource{
		client: client,
		url:    listURL,
		logger: logger.With().Str("source", "sina").Logger(),
	}, nil
}

// Name returns the source identifier.
func (s *SinaSource) Name() string { return "sina" }

// Fetch downloads the list page and parses its listing table.
func (s *SinaSource) Fetch(ctx context.Context) ([]ipo.RawRecord, error) {
	body, err := s.client.GetGBK(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sina listings: %w", err)
	}
	records, err := ParseSinaList(body, s.logger)
	if err != nil {
		return nil, fmt.Errorf("sina listings: %w", err)
	}
	s.logger.Info().Int("rows", len(records)).Msg("fetched hong kong listings")
	return records, nil
}

// ParseSinaList extracts raw records from the UTF-8 list page. The first
// table on the page is navigation; listings live in the second one.
func ParseSinaList(page []byte, logger zerolog.Logger) ([]ipo.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tables := doc.Find("table")
	if tables.Length() < 2 {
		return nil, fmt.Errorf("listing table not found: page has %d tables", tables.Length())
	}

	var records []ipo.RawRecord
	tables.Eq(1).Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("td").Length() == 0 {
			return
		}
		cells := tr.Find("td, th").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) < minColumns {
			logger.Debug().Int("columns", len(cells)).Msg("short row skipped")
			return
		}

		code, name := cells[colCode], cells[colName]
		if code == "" || name == "" || strings.Contains(code, footnoteMarker) {
			return
		}

		window := absent(cells[colSubscription])
		if window != "" {
			window = ipo.SplitConcatenated(window)
		}

		records = append(records, ipo.RawRecord{
			Market:       ipo.MarketHongKong,
			Code:         code,
			Name:         name,
			PrimaryDate:  windowStart(window),
			ListingDate:  absent(cells[colListing]),
			Window:       window,
			PriceRange:   absent(cells[colPriceRange]),
			OfferShares:  absent(cells[colOfferShares]),
			RaisedAmount: millionsToHKD(absent(cells[colRaisedMillions])),
		})
	})

	return records, nil
}

func absent(value string) string {
	if value == "--" {
		return ""
	}
	return value
}

// windowStart returns the first day of a window string, or "" if the
// window does not parse.
func windowStart(window string) string {
	if r, ok := ipo.ParseRange(window); ok {
		return ipo.FormatDate(r.Start)
	}
	return ""
}

// millionsToHKD converts the list's "millions of HKD" column to whole HKD.
// Values that do not parse are kept verbatim.
func millionsToHKD(raw string) string {
	if raw == "" || raw == "0.00" {
		return ""
	}
	millions, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return raw
	}
	return strconv.FormatInt(int64(millions*1e6), 10)
}

// SinaDetailEnricher reads the sector and company summary from the HK IPO
// profile page.
type SinaDetailEnricher struct {
	client *Client
	url    string
	logger zerolog.Logger
}

// NewSinaDetailEnricher builds the HK enricher against the profile page URL.
func NewSinaDetailEnricher(client *Client, detailURL string, logger zerolog.Logger) *SinaDetailEnricher {
	return &SinaDetailEnricher{
		client: client,
		url:    detailURL,
		logger: logger.With().Str("enricher", "sina_detail").Logger(),
	}
}

// Enrich fetches the profile page for rec.Code.
func (e *SinaDetailEnricher) Enrich(ctx context.Context, rec *ipo.Record) error {
	body, err := e.client.GetGBK(ctx, e.url, url.Values{"symbol": {rec.Code}})
	if err != nil {
		return fmt.Errorf("detail %s: %w", rec.Code, err)
	}
	industry, summary, err := ParseSinaDetail(body)
	if err != nil {
		return fmt.Errorf("detail %s: %w", rec.Code, err)
	}
	rec.Details.Industry = industry
	rec.Details.Description = ipo.Truncate(summary, descriptionLimit)
	e.logger.Debug().Str("code", rec.Code).Str("industry", industry).Int("summary_runes", len([]rune(summary))).Msg("detail enriched")
	return nil
}

// ParseSinaDetail finds the 板块 and 公司简介 label rows of a profile page.
func ParseSinaDetail(page []byte) (industry, summary string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			return true
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		switch label {
		case "板块":
			industry = value
		case "公司简介":
			summary = value
		}
		return industry == "" || summary == ""
	})

	if industry == "" && summary == "" {
		return "", "", errors.New("profile fields not found")
	}
	return industry, summary, nil
}
