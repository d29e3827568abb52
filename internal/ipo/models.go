package ipo

import "time"

// RawRecord is a listing entry as delivered by an upstream source, before
// any date parsing. Date fields hold the upstream strings verbatim.
type RawRecord struct {
	Market      string `json:"market"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	PrimaryDate string `json:"primary_date"`
	ListingDate string `json:"listing_date"`
	Window      string `json:"window"`

	IssuePrice        *float64 `json:"issue_price,omitempty"`
	PriceRange        string   `json:"price_range,omitempty"`
	IssueQuantity     *float64 `json:"issue_quantity,omitempty"`
	SubscriptionLimit *float64 `json:"subscription_limit,omitempty"`
	LotteryRate       string   `json:"lottery_rate,omitempty"`
	OfferShares       string   `json:"offer_shares,omitempty"`
	RaisedAmount      string   `json:"raised_amount,omitempty"`
	SubscriptionRatio string   `json:"subscription_ratio,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	Description       string   `json:"description,omitempty"`
}

// DateRange is an inclusive span of calendar days. Both ends are UTC midnights.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether day falls inside the range, ends included.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// String renders the range the way upstreams write it.
func (r DateRange) String() string {
	return FormatDate(r.Start) + rangeDelimiter + FormatDate(r.End)
}

// Record is a normalized listing. It is built once per run and only gains
// enrichment fields after classification.
type Record struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	PrimaryDate *time.Time `json:"primary_date,omitempty"`
	ListingDate *time.Time `json:"listing_date,omitempty"`
	Window      *DateRange `json:"window,omitempty"`
	WindowRaw   string     `json:"window_raw,omitempty"`
	Segment     string     `json:"segment,omitempty"`

	Details Details `json:"details"`
}

// Details carries pass-through enrichment fields. Classification never reads them.
type Details struct {
	IssuePrice        *float64 `json:"issue_price,omitempty"`
	PriceRange        string   `json:"price_range,omitempty"`
	IssueQuantity     *float64 `json:"issue_quantity,omitempty"`
	SubscriptionLimit *float64 `json:"subscription_limit,omitempty"`
	LotteryRate       string   `json:"lottery_rate,omitempty"`
	OfferShares       string   `json:"offer_shares,omitempty"`
	RaisedAmount      string   `json:"raised_amount,omitempty"`
	SubscriptionRatio string   `json:"subscription_ratio,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	Description       string   `json:"description,omitempty"`
}

// Classification is the result of Classify: two disjoint, date-ordered sets.
type Classification struct {
	Current []Record
	Future  []Record
}

// Report is the assembled output of one engine run.
type Report struct {
	RunID       string      `json:"run_id"`
	Market      string      `json:"market"`
	GeneratedAt time.Time   `json:"generated_at"`
	Today       string      `json:"today"`
	HorizonDays int         `json:"horizon_days"`
	Current     []Record    `json:"current"`
	Future      []Record    `json:"future"`
	Markdown    string      `json:"markdown"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Normalize converts a raw record into a Record under the market's rules.
// Unparseable dates become nil; an unparseable window keeps WindowRaw so the
// classifier can tell it apart from a missing one.
func Normalize(raw RawRecord, market Market) Record {
	rec := Record{
		Code:      cleanValue(raw.Code),
		Name:      cleanValue(raw.Name),
		WindowRaw: cleanValue(raw.Window),
		Details: Details{
			IssuePrice:        raw.IssuePrice,
			PriceRange:        cleanValue(raw.PriceRange),
			IssueQuantity:     raw.IssueQuantity,
			SubscriptionLimit: raw.SubscriptionLimit,
			LotteryRate:       cleanValue(raw.LotteryRate),
			OfferShares:       cleanValue(raw.OfferShares),
			RaisedAmount:      cleanValue(raw.RaisedAmount),
			SubscriptionRatio: cleanValue(raw.SubscriptionRatio),
			Industry:          cleanValue(raw.Industry),
			Description:       cleanValue(raw.Description),
		},
	}

	if d, ok := ParseDate(raw.PrimaryDate); ok {
		rec.PrimaryDate = &d
	}
	if d, ok := ParseDate(raw.ListingDate); ok {
		rec.ListingDate = &d
	}

	if rec.WindowRaw != "" {
		if r, ok := ParseRange(rec.WindowRaw); ok {
			rec.Window = &r
		}
	}

	rec.Segment = market.Segment(rec.Code)
	return rec
}
