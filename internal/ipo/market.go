package ipo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownMarket is returned by MarketByID for identifiers it does not know.
var ErrUnknownMarket = errors.New("ipo: unknown market")

const (
	MarketMainland = "a"
	MarketHongKong = "hk"
)

// Market is the policy that parametrizes the engine per exchange: which
// date a record is grouped under, which records are complete enough to keep,
// and how codes map to board segments.
type Market struct {
	ID    string
	Label string

	// GroupingDate selects the date a record is bucketed under for display.
	GroupingDate func(Record) (time.Time, bool)
	// Validate returns the reason a record must be dropped, or "" to keep it.
	Validate func(Record) Reason
	// Segment derives the board/exchange segment from a listing code.
	Segment func(code string) string
	// ReportRows renders the market-specific table rows of one record.
	ReportRows func(Record) [][2]string
}

// Mainland is the policy for Shanghai, Shenzhen and Beijing listings.
func Mainland() Market {
	return Market{
		ID:           MarketMainland,
		Label:        "A股",
		GroupingDate: primaryDate,
		Validate: func(r Record) Reason {
			if r.PrimaryDate == nil {
				return ReasonMissingDate
			}
			return ""
		},
		Segment:    MainlandSegment,
		ReportRows: mainlandRows,
	}
}

// HongKong is the policy for HKEX listings.
func HongKong() Market {
	return Market{
		ID:    MarketHongKong,
		Label: "港股",
		GroupingDate: func(r Record) (time.Time, bool) {
			if r.ListingDate != nil {
				return *r.ListingDate, true
			}
			return primaryDate(r)
		},
		Validate: func(r Record) Reason {
			if r.PrimaryDate == nil && r.ListingDate == nil {
				return ReasonMissingDate
			}
			return ""
		},
		Segment:    HongKongSegment,
		ReportRows: hongKongRows,
	}
}

// MarketByID resolves a market identifier. Gateway-style aliases such as
// "a-stock" and "hk-stock" are accepted.
func MarketByID(id string) (Market, error) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "a", "a-stock", "cn", "mainland":
		return Mainland(), nil
	case "hk", "hk-stock", "hongkong":
		return HongKong(), nil
	default:
		return Market{}, fmt.Errorf("%w: %q", ErrUnknownMarket, id)
	}
}

func primaryDate(r Record) (time.Time, bool) {
	if r.PrimaryDate == nil {
		return time.Time{}, false
	}
	return *r.PrimaryDate, true
}

// MainlandSegment maps an A-share code prefix to its board.
func MainlandSegment(code string) string {
	switch {
	case strings.HasPrefix(code, "60"):
		return "上海-主板"
	case strings.HasPrefix(code, "68"):
		return "上海-科创板"
	case strings.HasPrefix(code, "00"):
		return "深圳-主板"
	case strings.HasPrefix(code, "30"):
		return "深圳-创业板"
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"),
		strings.HasPrefix(code, "92"), strings.HasPrefix(code, "93"):
		return "北交所"
	default:
		return ""
	}
}

// MainlandExchange returns SH, SZ or BJ for an A-share code.
func MainlandExchange(code string) string {
	switch {
	case strings.HasPrefix(code, "6"):
		return "SH"
	case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
		return "SZ"
	case strings.HasPrefix(code, "8"), strings.HasPrefix(code, "4"), strings.HasPrefix(code, "9"):
		return "BJ"
	default:
		return ""
	}
}

// HongKongSegment distinguishes GEM (08xxx) from Main Board codes.
func HongKongSegment(code string) string {
	if code == "" {
		return ""
	}
	if strings.HasPrefix(code, "08") {
		return "港交所-创业板"
	}
	return "港交所-主板"
}
