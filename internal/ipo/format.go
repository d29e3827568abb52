package ipo

import (
	"fmt"
	"strconv"
	"strings"
)

const pending = "待定"

// FormatYuan renders a mainland issue price, or 待定 while it is not set.
func FormatYuan(price *float64) string {
	if price == nil || *price <= 0 {
		return pending
	}
	return fmt.Sprintf("%.2f元", *price)
}

// FormatHKPrice renders an HK offer price range.
func FormatHKPrice(priceRange string) string {
	if priceRange == "" {
		return pending
	}
	return priceRange + "港元"
}

// FormatShares renders an HK share count using 亿/万 units.
func FormatShares(raw string) string {
	if raw == "" {
		return pending
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return raw
	}
	switch {
	case n >= 1e8:
		return fmt.Sprintf("%.2f亿股", n/1e8)
	case n >= 1e4:
		return fmt.Sprintf("%.0f万股", n/1e4)
	default:
		return fmt.Sprintf("%.0f股", n)
	}
}

// FormatHKAmount renders an HK dollar amount using 亿/万 units.
func FormatHKAmount(raw string) string {
	if raw == "" {
		return pending
	}
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, ",", ""), "HK$", ""))
	n, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return raw + "港元"
	}
	switch {
	case n >= 1e8:
		return fmt.Sprintf("%.2f亿港元", n/1e8)
	case n >= 1e4:
		return fmt.Sprintf("%.0f万港元", n/1e4)
	default:
		return fmt.Sprintf("%.0f港元", n)
	}
}

// FormatLotteryRate renders a winning rate in percent with four decimals.
// Fractions below one are taken as ratios and scaled to percent.
func FormatLotteryRate(raw string) string {
	raw = cleanValue(raw)
	if raw == "" {
		return ""
	}
	rate, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return raw
	}
	if rate < 1 {
		rate *= 100
	}
	return strconv.FormatFloat(rate, 'f', 4, 64)
}

// Truncate shortens text to max runes, marking the cut with "...".
func Truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func windowText(r Record) string {
	switch {
	case r.WindowRaw != "":
		return r.WindowRaw
	case r.Window != nil:
		return r.Window.String()
	case r.PrimaryDate != nil:
		return FormatDate(*r.PrimaryDate)
	default:
		return ""
	}
}

func mainlandRows(r Record) [][2]string {
	rows := [][2]string{{"申购代码", r.Code}}
	if w := windowText(r); w != "" {
		rows = append(rows, [2]string{"申购日期", w})
	}
	rows = append(rows, [2]string{"发行价格", FormatYuan(r.Details.IssuePrice)})
	if q := r.Details.IssueQuantity; q != nil && *q > 0 {
		rows = append(rows, [2]string{"发行数量", fmt.Sprintf("%.0f万股", *q)})
	}
	if l := r.Details.SubscriptionLimit; l != nil && *l > 0 {
		rows = append(rows, [2]string{"申购上限", fmt.Sprintf("%.0f万股", *l)})
	}
	if r.Details.LotteryRate != "" {
		rows = append(rows, [2]string{"中签率", r.Details.LotteryRate + "%"})
	}
	if r.ListingDate != nil {
		rows = append(rows, [2]string{"上市日期", FormatDate(*r.ListingDate)})
	}
	rows = append(rows,
		[2]string{"上市地点", r.Segment},
		[2]string{"所属行业", r.Details.Industry},
	)
	if r.Details.Description != "" {
		rows = append(rows, [2]string{"公司简介", r.Details.Description})
	}
	return rows
}

func hongKongRows(r Record) [][2]string {
	rows := [][2]string{{"股票代码", r.Code}}
	if w := windowText(r); w != "" {
		rows = append(rows, [2]string{"申购日期", w})
	}
	if r.ListingDate != nil {
		rows = append(rows, [2]string{"上市日期", FormatDate(*r.ListingDate)})
	}
	rows = append(rows, [2]string{"招股价", FormatHKPrice(r.Details.PriceRange)})
	if r.Details.OfferShares != "" {
		rows = append(rows, [2]string{"发售股数", FormatShares(r.Details.OfferShares)})
	}
	if r.Details.RaisedAmount != "" {
		rows = append(rows, [2]string{"集资额", FormatHKAmount(r.Details.RaisedAmount)})
	}
	if r.Details.SubscriptionRatio != "" {
		rows = append(rows, [2]string{"认购倍数", r.Details.SubscriptionRatio})
	}
	rows = append(rows, [2]string{"上市地点", r.Segment})
	if r.Details.Industry != "" {
		rows = append(rows, [2]string{"所属板块", r.Details.Industry})
	}
	if r.Details.Description != "" {
		rows = append(rows, [2]string{"公司简介", r.Details.Description})
	}
	return rows
}
