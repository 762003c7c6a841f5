// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterIndexPagesTotal          *prometheus.CounterVec
	harvesterLinksDispatchedTotal     prometheus.Counter
	harvesterRecordsTotal             prometheus.Counter
	harvesterExtractionFailuresTotal  *prometheus.CounterVec
	harvesterExtractionDurationSecond prometheus.Histogram
	harvesterInFlightExtractions      prometheus.Gauge
	harvesterFetchAttemptsTotal       *prometheus.CounterVec
	harvesterSinkErrorsTotal          *prometheus.CounterVec
	harvesterRateLimitDelaysSeconds   *prometheus.HistogramVec
	harvesterOpsRequestsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterIndexPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_index_pages_total",
				Help: "Listing index pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterLinksDispatchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_links_dispatched_total",
				Help: "Job detail links handed to the coordinator.",
			},
		)

		harvesterRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Job records extracted and handed to the sinks.",
			},
		)

		harvesterExtractionFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extraction_failures_total",
				Help: "Job extractions that ended without a record, labeled by step.",
			},
			[]string{"step"},
		)

		harvesterExtractionDurationSecond = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_extraction_duration_seconds",
				Help:    "Wall time of a single job extraction.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
		)

		harvesterInFlightExtractions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_inflight_extractions",
				Help: "Extractions currently holding an admission slot.",
			},
		)

		harvesterFetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "Outbound fetch attempts through the proxy service, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterSinkErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_sink_errors_total",
				Help: "Failed record appends, labeled by sink.",
			},
			[]string{"sink"},
		)

		harvesterRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		harvesterOpsRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_ops_requests_total",
				Help: "Requests served by the ops HTTP server.",
			},
			[]string{"route", "code"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIndexPage counts a listing index page by outcome ("ok", "empty", "error").
func ObserveIndexPage(outcome string) {
	Init()
	harvesterIndexPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveLinksDispatched adds n dispatched job links.
func ObserveLinksDispatched(n int) {
	Init()
	harvesterLinksDispatchedTotal.Add(float64(n))
}

// ObserveRecord counts one emitted record.
func ObserveRecord() {
	Init()
	harvesterRecordsTotal.Inc()
}

// ObserveExtractionFailure counts a failed extraction at the given step.
func ObserveExtractionFailure(step string) {
	Init()
	harvesterExtractionFailuresTotal.WithLabelValues(step).Inc()
}

// ObserveExtractionDuration records the wall time of one extraction.
func ObserveExtractionDuration(d time.Duration) {
	Init()
	harvesterExtractionDurationSecond.Observe(d.Seconds())
}

// IncInFlight increments the in-flight extraction gauge.
func IncInFlight() {
	Init()
	harvesterInFlightExtractions.Inc()
}

// DecInFlight decrements the in-flight extraction gauge.
func DecInFlight() {
	Init()
	harvesterInFlightExtractions.Dec()
}

// ObserveFetchAttempt counts one fetch attempt by outcome
// ("ok", "retry", "exhausted", "error").
func ObserveFetchAttempt(outcome string) {
	Init()
	harvesterFetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSinkError counts a failed append for the named sink.
func ObserveSinkError(sink string) {
	Init()
	harvesterSinkErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	harvesterRateLimitDelaysSeconds.WithLabelValues(SanitizeSite(domain)).Observe(duration.Seconds())
}

// ObserveOpsRequest counts one ops server request by route pattern and status.
func ObserveOpsRequest(route string, status int) {
	Init()
	if route == "" {
		route = "unknown"
	}
	harvesterOpsRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
