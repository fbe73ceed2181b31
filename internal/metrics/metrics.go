// Package metrics exposes Prometheus collectors for the crawler service.
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

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerStopsTotal          *prometheus.CounterVec
	crawlerEnqueuedTotal       prometheus.Counter
	crawlerCrawlsStartedTotal  prometheus.Counter
	crawlerActiveWorkers       prometheus.Gauge
	crawlerRateLimitDelay      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of work items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerStopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_stops_total",
				Help: "Total number of stop conditions hit, labeled by reason.",
			},
			[]string{"reason"},
		)

		crawlerEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_enqueued_total",
				Help: "Total number of work items enqueued to the frontier.",
			},
		)

		crawlerCrawlsStartedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_crawls_started_total",
				Help: "Total number of crawls started.",
			},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		crawlerRateLimitDelay = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_ratelimit_delay_seconds",
				Help:    "Delay introduced by the per-host rate limiter.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"host"},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the processed-item counter for an outcome
// ("ok", "http_error", "error", "redelivered").
func ObservePage(outcome string) {
	Init()
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStop increments the stop counter for the given reason.
func ObserveStop(reason string) {
	Init()
	crawlerStopsTotal.WithLabelValues(reason).Inc()
}

// ObserveEnqueued increments the frontier enqueue counter.
func ObserveEnqueued() {
	Init()
	crawlerEnqueuedTotal.Inc()
}

// ObserveCrawlStarted increments the started-crawls counter.
func ObserveCrawlStarted() {
	Init()
	crawlerCrawlsStartedTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records time spent waiting on the per-host
// rate limiter.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	crawlerRateLimitDelay.WithLabelValues(host).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
