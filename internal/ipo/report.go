package ipo

import (
	"fmt"
	"strings"
	"time"
)

// Assemble renders the classified sets as a markdown report. Each set is
// grouped by the market's grouping date and the groups are written in
// ascending date order. Two empty sets produce the placeholder report.
func Assemble(market Market, cls Classification, horizonDays int, generatedAt time.Time) string {
	lines := []string{
		fmt.Sprintf("# %s新股发行信息", market.Label),
		"",
		fmt.Sprintf("**生成时间**: %s", generatedAt.Format("2006-01-02 15:04:05")),
		"",
	}

	if len(cls.Current) == 0 && len(cls.Future) == 0 {
		lines = append(lines,
			"---",
			"",
			"## 暂无新股信息",
			"",
			EmptyPlaceholder(market, horizonDays),
		)
		return strings.Join(lines, "\n")
	}

	if len(cls.Current) > 0 {
		lines = append(lines, section("一、当前可申购的新股", cls.Current, market)...)
	}
	if len(cls.Future) > 0 {
		title := fmt.Sprintf("二、未来%d天即将开放申购的新股", horizonDays)
		lines = append(lines, section(title, cls.Future, market)...)
	}

	return strings.Join(lines, "\n")
}

// EmptyPlaceholder is the sentence shown when nothing is subscribable now or soon.
func EmptyPlaceholder(market Market, horizonDays int) string {
	return fmt.Sprintf("当前暂无可申购的%s新股，未来%d天也无即将开放申购的新股。", market.Label, horizonDays)
}

func section(title string, records []Record, market Market) []string {
	lines := []string{
		"---",
		"",
		"## " + title,
		"",
		fmt.Sprintf("**数量**: %d 只", len(records)),
		"",
	}

	groups := GroupByDate(records, market)
	for _, key := range groups.Keys() {
		lines = append(lines, "### "+key, "")
		for _, rec := range groups[key] {
			lines = append(lines, recordBlock(rec, market)...)
		}
	}

	// Records without any grouping date still belong to the set.
	var undated []Record
	for _, rec := range records {
		if _, ok := market.GroupingDate(rec); !ok {
			undated = append(undated, rec)
		}
	}
	if len(undated) > 0 {
		lines = append(lines, "### 日期待定", "")
		for _, rec := range undated {
			lines = append(lines, recordBlock(rec, market)...)
		}
	}

	return lines
}

func recordBlock(rec Record, market Market) []string {
	lines := []string{
		fmt.Sprintf("#### %s（%s）", rec.Name, rec.Code),
		"",
		"| 项目 | 信息 |",
		"|------|------|",
	}
	for _, row := range market.ReportRows(rec) {
		lines = append(lines, fmt.Sprintf("| **%s** | %s |", row[0], cell(row[1])))
	}
	return append(lines, "")
}

// cell keeps a value on one table row.
func cell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}
