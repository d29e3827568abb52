package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ipowatch/internal/app"
	"ipowatch/internal/config"
	"ipowatch/internal/ipo"
)

// errReportFailed makes the process exit non-zero after the error envelope
// has been printed.
var errReportFailed = errors.New("report failed")

var (
	marketFlag     string
	futureDaysFlag int
	formatFlag     string
	noEnrichFlag   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch and print the report for one market",
	Example: `  ipo-report report --market a
  ipo-report report --market hk --future-days 30 --format markdown`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&marketFlag, "market", "m", "", "market to report: a or hk")
	reportCmd.Flags().IntVar(&futureDaysFlag, "future-days", 0, "horizon in days for upcoming listings (default: IPO_FUTURE_DAYS)")
	reportCmd.Flags().StringVar(&formatFlag, "format", "json", "output format: json or markdown")
	reportCmd.Flags().BoolVar(&noEnrichFlag, "no-enrich", false, "skip industry and description lookups")
	_ = reportCmd.MarkFlagRequired("market")
}

func runReport(cmd *cobra.Command, _ []string) error {
	if formatFlag != "json" && formatFlag != "markdown" {
		return fmt.Errorf("unknown format %q", formatFlag)
	}
	if futureDaysFlag < 0 || futureDaysFlag > 90 {
		return fmt.Errorf("future-days must be between 1 and 90")
	}

	market, err := ipo.MarketByID(marketFlag)
	if err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logger := config.NewLoggerTo(cfg.Logging, os.Stderr)

	engine, err := app.NewEngine(cfg, market, app.NewClient(cfg, logger), logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	opts := ipo.RunOptions{HorizonDays: futureDaysFlag}
	if noEnrichFlag {
		off := false
		opts.Enrich = &off
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	report, runErr := engine.Run(ctx, opts)
	return writeResult(cmd.OutOrStdout(), market, report, runErr, formatFlag)
}

func writeResult(out io.Writer, market ipo.Market, report ipo.Report, runErr error, format string) error {
	if runErr != nil {
		if err := writeJSON(out, ipo.NewErrorEnvelope(market, runErr)); err != nil {
			return err
		}
		return errReportFailed
	}
	if format == "markdown" {
		_, err := fmt.Fprintln(out, report.Markdown)
		return err
	}
	return writeJSON(out, ipo.NewEnvelope(market, report))
}

func writeJSON(out io.Writer, payload any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
