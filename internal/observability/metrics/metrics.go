// Package metrics registers the service's prometheus instruments.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "twin_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoData  = "no_data"
)

var (
	registerOnce sync.Once

	analysisTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec

	alertsTotal        prometheus.Counter
	skippedFilesTotal  prometheus.Counter
	weatherRowsDropped prometheus.Counter

	exportTotal *prometheus.CounterVec
)

// Init registers all instruments with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		analysisTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analysis_total",
				Help: "Total analysis invocations by result",
			},
			[]string{"result"},
		)
		analysisLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analysis_latency_seconds",
				Help:    "Analysis latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		alertsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_emitted_total",
				Help: "Total alert events emitted",
			},
		)
		skippedFilesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_files_total",
				Help: "Total uploads skipped for structural errors",
			},
		)
		weatherRowsDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "weather_rows_dropped_total",
				Help: "Total telemetry rows dropped during weather joins",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export operations by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			analysisTotal,
			analysisLatency,
			alertsTotal,
			skippedFilesTotal,
			weatherRowsDropped,
			exportTotal,
		)
	})
}

// ObserveAnalysis records one analysis invocation.
func ObserveAnalysis(result string, elapsed time.Duration) {
	if analysisTotal == nil {
		return
	}
	analysisTotal.WithLabelValues(result).Inc()
	analysisLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// AddAlerts records emitted alert events.
func AddAlerts(n int) {
	if alertsTotal == nil || n <= 0 {
		return
	}
	alertsTotal.Add(float64(n))
}

// AddSkippedFiles records uploads isolated from a batch.
func AddSkippedFiles(n int) {
	if skippedFilesTotal == nil || n <= 0 {
		return
	}
	skippedFilesTotal.Add(float64(n))
}

// AddWeatherRowsDropped records rows lost to an exact-timestamp join.
func AddWeatherRowsDropped(n int) {
	if weatherRowsDropped == nil || n <= 0 {
		return
	}
	weatherRowsDropped.Add(float64(n))
}

// ObserveExport records one export operation.
func ObserveExport(format, result string) {
	if exportTotal == nil {
		return
	}
	exportTotal.WithLabelValues(format, result).Inc()
}
