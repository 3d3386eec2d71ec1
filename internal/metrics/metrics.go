// Package metrics exposes Prometheus counters and histograms for the
// crawl and summarization pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlerPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitedigest_crawler_pages_total",
			Help: "Total number of pages fetched, labeled by domain and status.",
		},
		[]string{"domain", "status"},
	)

	crawlerBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitedigest_crawler_bytes_total",
			Help: "Total number of bytes fetched, labeled by domain.",
		},
		[]string{"domain"},
	)

	crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitedigest_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitedigest_documents_total",
			Help: "Total number of documents processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	summaryDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitedigest_summary_duration_seconds",
			Help:    "Histogram of model summarization latencies.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	summaryRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitedigest_summary_retries_total",
			Help: "Total number of summarization retry attempts.",
		},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitedigest_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies on the operational listener.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route", "status"},
	)
)

// ObservePageFetched records a completed fetch.
func ObservePageFetched(domain, status string, bytes int) {
	crawlerPagesTotal.WithLabelValues(domain, status).Inc()
	crawlerBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// ObserveRateLimitDelay records time spent waiting on the per-domain limiter.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// ObserveDocument records a document's terminal outcome.
func ObserveDocument(outcome string) {
	documentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSummaryDuration records one model call's latency.
func ObserveSummaryDuration(d time.Duration) {
	summaryDurationSeconds.Observe(d.Seconds())
}

// IncSummaryRetry counts a summarization retry attempt.
func IncSummaryRetry() {
	summaryRetriesTotal.Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
