// Package metrics exposes Prometheus collectors for the ad catalog.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes.
const (
	CaptureOK                = "ok"
	CaptureDegraded          = "degraded"
	CaptureStructuralFailure = "structural_failure"
)

// Ad outcomes.
const (
	AdAccepted   = "accepted"
	AdSuperseded = "superseded"
	AdRejected   = "rejected"
)

// Enrichment outcomes.
const (
	EnrichSaved   = "saved"
	EnrichSkipped = "skipped"
	EnrichNoLink  = "no_link"
)

var (
	capturesTotal              *prometheus.CounterVec
	captureDurationSeconds     prometheus.Histogram
	adsTotal                   *prometheus.CounterVec
	enrichmentsTotal           *prometheus.CounterVec
	catalogEntries             *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adcatalog_captures_total",
				Help: "Capture runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		captureDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adcatalog_capture_duration_seconds",
				Help:    "Wall time of capture runs.",
				Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
			},
		)

		adsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adcatalog_ads_total",
				Help: "Ads processed by the catalog, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adcatalog_enrichments_total",
				Help: "Content enrichment attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		catalogEntries = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adcatalog_catalog_entries",
				Help: "Active catalog entries, labeled by collection.",
			},
			[]string{"collection"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adcatalog_rate_limit_delay_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"limiter"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture records one capture run.
func ObserveCapture(outcome string, duration time.Duration) {
	Init()
	capturesTotal.WithLabelValues(outcome).Inc()
	captureDurationSeconds.Observe(duration.Seconds())
}

// ObserveAds adds n ads with the given outcome.
func ObserveAds(outcome string, n int) {
	if n <= 0 {
		return
	}
	Init()
	adsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveEnrichment records one enrichment attempt.
func ObserveEnrichment(outcome string) {
	Init()
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// SetCatalogEntries publishes the size of a catalog collection.
func SetCatalogEntries(collection string, n int) {
	Init()
	catalogEntries.WithLabelValues(collection).Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(limiter string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(limiter).Observe(duration.Seconds())
}
