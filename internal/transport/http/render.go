package transporthttp

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"ipowatch/internal/ipo"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
    table { border-collapse: collapse; margin-bottom: 1rem; }
    th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
  </style>
</head>
<body data-run-id="{{.RunID}}">
{{.Body}}
</body>
</html>`))

// renderReportPage converts the markdown report into a standalone HTML page.
func renderReportPage(market ipo.Market, report ipo.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(report.Markdown), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	err := reportPage.Execute(&page, struct {
		Title string
		RunID string
		Body  template.HTML
	}{
		Title: market.Label + "新股发行信息",
		RunID: report.RunID,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return page.Bytes(), nil
}
