package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ipowatch/internal/ipo"
)

// descriptionLimit caps the main-business text taken from the profile API.
const descriptionLimit = 500

// FieldMap locates each logical field in an upstream row by name. Keys are
// tried in order and the first present, non-empty value wins.
type FieldMap map[string][]string

// Logical field names used by the mainland source.
const (
	FieldCode              = "code"
	FieldName              = "name"
	FieldPrimaryDate       = "primary_date"
	FieldListingDate       = "listing_date"
	FieldOnlineStart       = "online_start"
	FieldOnlineEnd         = "online_end"
	FieldIssuePrice        = "issue_price"
	FieldIssueQuantity     = "issue_quantity"
	FieldSubscriptionLimit = "subscription_limit"
	FieldLotteryRate       = "lottery_rate"
	FieldIndustry          = "industry"
	FieldMainBusiness      = "main_business"
)

// DefaultCninfoFields covers both the labelled export and the raw API keys.
var DefaultCninfoFields = FieldMap{
	FieldCode:              {"证劵代码", "证券代码", "SECCODE", "seccode", "code"},
	FieldName:              {"证券简称", "SECNAME", "secname", "name"},
	FieldPrimaryDate:       {"申购日期", "subscription_date", "primary_date"},
	FieldListingDate:       {"上市日期", "listing_date"},
	FieldOnlineStart:       {"网上申购日期", "网上发行日期", "online_start"},
	FieldOnlineEnd:         {"网上申购截止日期", "网上申购日期结束", "online_end"},
	FieldIssuePrice:        {"发行价", "发行价格", "issue_price"},
	FieldIssueQuantity:     {"总发行数量", "发行数量", "issue_quantity"},
	FieldSubscriptionLimit: {"网上申购上限", "申购上限", "subscription_limit"},
	FieldLotteryRate:       {"上网发行中签率", "中签率", "lottery_rate"},
	FieldIndustry:          {"所属行业", "行业", "industry"},
	FieldMainBusiness:      {"主营业务", "main_business"},
}

type row map[string]any

// lookup returns the first non-empty value for field as a trimmed string.
func (m FieldMap) lookup(r row, field string) string {
	for _, key := range m[field] {
		value, ok := r[key]
		if !ok || value == nil {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		case float64:
			text = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			text = strconv.FormatBool(v)
		default:
			text = fmt.Sprint(v)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

func decodeRows(body []byte) ([]row, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload struct {
		ResultCode json.Number `json:"resultcode"`
		ResultMsg  string      `json:"resultmsg"`
		Records    []row       `json:"records"`
	}
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if code := payload.ResultCode.String(); code != "" && code != "200" {
		return nil, fmt.Errorf("upstream result %s: %s", code, payload.ResultMsg)
	}
	return payload.Records, nil
}

// CninfoSource fetches mainland listings from the cninfo JSON API.
type CninfoSource struct {
	client *Client
	url    string
	fields FieldMap
	logger zerolog.Logger
}

// NewCninfoSource builds the mainland source against endpoint.
func NewCninfoSource(client *Client, endpoint string, logger zerolog.Logger) (*CninfoSource, error) {
	if client == nil {
		return nil, errors.New("cninfo source requires a client")
	}
	if endpoint == "" {
		return nil, errors.New("cninfo source requires an endpoint")
	}
	return &CninfoSource{
		client: client,
		url:    endpoint,
		fields: DefaultCninfoFields,
		logger: logger.With().Str("source", "cninfo").Logger(),
	}, nil
}

// Name returns the source identifier.
func (s *CninfoSource) Name() string { return "cninfo" }

// Fetch downloads the IPO calendar and maps each row to a raw record.
func (s *CninfoSource) Fetch(ctx context.Context) ([]ipo.RawRecord, error) {
	body, err := s.client.PostForm(ctx, s.url, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("cninfo listings: %w", err)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("cninfo listings: %w", err)
	}

	records := make([]ipo.RawRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, s.toRaw(r))
	}
	s.logger.Info().Int("rows", len(rows)).Msg("fetched mainland listings")
	return records, nil
}

func (s *CninfoSource) toRaw(r row) ipo.RawRecord {
	primary := s.fields.lookup(r, FieldPrimaryDate)
	return ipo.RawRecord{
		Market:            ipo.MarketMainland,
		Code:              s.fields.lookup(r, FieldCode),
		Name:              s.fields.lookup(r, FieldName),
		PrimaryDate:       primary,
		ListingDate:       s.fields.lookup(r, FieldListingDate),
		Window:            BuildWindow(s.fields.lookup(r, FieldOnlineStart), s.fields.lookup(r, FieldOnlineEnd), primary),
		IssuePrice:        ParseAmount(s.fields.lookup(r, FieldIssuePrice)),
		IssueQuantity:     ParseAmount(s.fields.lookup(r, FieldIssueQuantity)),
		SubscriptionLimit: ParseAmount(s.fields.lookup(r, FieldSubscriptionLimit)),
		LotteryRate:       ipo.FormatLotteryRate(s.fields.lookup(r, FieldLotteryRate)),
	}
}

// BuildWindow composes the subscription window from the online start and
// end dates: both give "start至end", only the end gives "end至end", and
// neither falls back to the primary date as a single day.
func BuildWindow(start, end, primary string) string {
	start, end, primary = dateHead(start), dateHead(end), dateHead(primary)
	switch {
	case start != "" && end != "":
		return start + "至" + end
	case end != "":
		return end + "至" + end
	case primary != "":
		return primary + "至" + primary
	default:
		return ""
	}
}

// dateHead keeps the date part of a timestamp such as "2025-12-22 00:00:00".
func dateHead(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		if _, ok := ipo.ParseDate(s[:10]); ok {
			return s[:10]
		}
	}
	return s
}

// ParseAmount reads a number that may carry 万股 or 万 units or thousands
// separators. The unit is dropped, not applied.
func ParseAmount(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "--" || raw == "-" {
		return nil
	}
	raw = strings.NewReplacer("万股", "", "万", "", ",", "").Replace(raw)
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &value
}

// CninfoProfileEnricher fills industry and main business from the cninfo
// company profile API.
type CninfoProfileEnricher struct {
	client *Client
	url    string
	fields FieldMap
	logger zerolog.Logger
}

// NewCninfoProfileEnricher builds the mainland enricher against endpoint.
func NewCninfoProfileEnricher(client *Client, endpoint string, logger zerolog.Logger) *CninfoProfileEnricher {
	return &CninfoProfileEnricher{
		client: client,
		url:    endpoint,
		fields: DefaultCninfoFields,
		logger: logger.With().Str("enricher", "cninfo_profile").Logger(),
	}
}

// Enrich looks up the company profile for rec.Code.
func (e *CninfoProfileEnricher) Enrich(ctx context.Context, rec *ipo.Record) error {
	body, err := e.client.PostForm(ctx, e.url, url.Values{"scode": {rec.Code}})
	if err != nil {
		return fmt.Errorf("profile %s: %w", rec.Code, err)
	}
	rows, err := decodeRows(body)
	if err != nil {
		return fmt.Errorf("profile %s: %w", rec.Code, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("profile %s: no records", rec.Code)
	}

	rec.Details.Industry = e.fields.lookup(rows[0], FieldIndustry)
	rec.Details.Description = ipo.Truncate(e.fields.lookup(rows[0], FieldMainBusiness), descriptionLimit)
	e.logger.Debug().Str("code", rec.Code).Msg("profile enriched")
	return nil
}
