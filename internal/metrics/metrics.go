// Package metrics exposes Prometheus collectors for listing runs and the
// HTTP API.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ipowatch/internal/ipo"
)

// Namespace for all service metrics
const namespace = "ipowatch"

// Registry holds every collector of the service.
var Registry = prometheus.NewRegistry()

// AppInfo exposes the build version as a label.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version"},
)

// RecordsFetched counts raw records received from upstream per market.
var RecordsFetched = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_fetched_total",
		Help:      "Total number of listing records received from upstream sources",
	},
	[]string{"market"},
)

// RecordsSkipped counts records excluded from a report, by reason.
var RecordsSkipped = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Total number of listing records dropped or left unclassified",
	},
	[]string{"market", "reason"}, // reason: missing_code|missing_name|missing_date|duplicate_code|no_window|unparseable_window|enrichment_failed
)

// RecordsClassified counts records per output set.
var RecordsClassified = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_classified_total",
		Help:      "Total number of listing records placed in a report set",
	},
	[]string{"market", "set"}, // set: current|future
)

// RunErrors counts runs that failed to fetch.
var RunErrors = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_errors_total",
		Help:      "Total number of report runs aborted by an upstream failure",
	},
	[]string{"market"},
)

// RunDuration records end-to-end run latency, upstream fetch included.
var RunDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of report runs in seconds",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	},
	[]string{"market", "outcome"}, // outcome: success|error
)

// LastSuccess is the unix time of the last successful run per market.
var LastSuccess = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful report run",
	},
	[]string{"market"},
)

var initOnce sync.Once

// Init registers runtime collectors and sets version information.
func Init(version string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version).Set(1)
}

// Recorder feeds engine runs into the package collectors.
type Recorder struct{}

var _ ipo.Recorder = Recorder{}

// ObserveRun implements ipo.Recorder.
func (Recorder) ObserveRun(market string, report ipo.Report, elapsed time.Duration, err error) {
	if err != nil {
		RunErrors.WithLabelValues(market).Inc()
		RunDuration.WithLabelValues(market, "error").Observe(elapsed.Seconds())
		return
	}

	RecordsFetched.WithLabelValues(market).Add(float64(report.Diagnostics.Fetched))
	for reason, n := range report.Diagnostics.ByReason() {
		RecordsSkipped.WithLabelValues(market, string(reason)).Add(float64(n))
	}
	RecordsClassified.WithLabelValues(market, "current").Add(float64(len(report.Current)))
	RecordsClassified.WithLabelValues(market, "future").Add(float64(len(report.Future)))
	RunDuration.WithLabelValues(market, "success").Observe(elapsed.Seconds())
	LastSuccess.WithLabelValues(market).Set(float64(report.GeneratedAt.Unix()))
}
