// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	PollCyclesTotal    prometheus.Counter
	PollTokenErrors    *prometheus.CounterVec
	PollCycleDuration  prometheus.Histogram
	LastSuccessfulPoll prometheus.Gauge
	ActiveTokens       prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Trade queue metrics
	TradesEnqueued prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Trade worker metrics
	TradesProcessed *prometheus.CounterVec
	TradeDuration   prometheus.Histogram

	// Broadcast metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// Chain metrics
	ChainCallLatency *prometheus.HistogramVec
	ChainCallErrors  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stacksdotfun"
	}

	return &Metrics{
		// Feed metrics
		PollCyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_cycles_total",
			Help:      "Total number of completed poll cycles",
		}),
		PollTokenErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_token_errors_total",
			Help:      "Total number of per-token poll failures by stage",
		}, []string{"stage"}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last completed poll cycle",
		}),
		ActiveTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "active_tokens",
			Help:      "Number of tokens in the polling set",
		}),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by kind",
		}, []string{"kind"}),

		// Trade queue metrics
		TradesEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "trades_enqueued_total",
			Help:      "Total number of trade intents accepted onto the queue",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of queued trade intents",
		}),

		// Trade worker metrics
		TradesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_processed_total",
			Help:      "Total number of trades processed by outcome",
		}, []string{"outcome"}),
		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_duration_seconds",
			Help:      "Trade execution duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120},
		}),

		// Broadcast metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		}, []string{"type"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped for slow clients",
		}),

		// Chain metrics
		ChainCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_latency_seconds",
			Help:      "Contract call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ChainCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_errors_total",
			Help:      "Total number of contract call failures by kind",
		}, []string{"method", "kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCacheHit increments the cache hit counter for a kind.
func RecordCacheHit(kind string) {
	DefaultMetrics.CacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss increments the cache miss counter for a kind.
func RecordCacheMiss(kind string) {
	DefaultMetrics.CacheMisses.WithLabelValues(kind).Inc()
}

// RecordTradeEnqueued increments the enqueued trades counter.
func RecordTradeEnqueued() {
	DefaultMetrics.TradesEnqueued.Inc()
}

// RecordTradeProcessed increments the processed trades counter for an outcome.
func RecordTradeProcessed(outcome string) {
	DefaultMetrics.TradesProcessed.WithLabelValues(outcome).Inc()
}

// RecordQueueDepth sets the queued-intents gauge.
func RecordQueueDepth(n int64) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// RecordChainCall records one contract call's latency.
func RecordChainCall(method string, durationSeconds float64) {
	DefaultMetrics.ChainCallLatency.WithLabelValues(method).Observe(durationSeconds)
}

// RecordChainCallError increments the contract call failure counter.
func RecordChainCallError(method, kind string) {
	DefaultMetrics.ChainCallErrors.WithLabelValues(method, kind).Inc()
}

// RecordEventPublished increments the published events counter for a type.
func RecordEventPublished(eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped increments the dropped events counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// RecordPollCycle records a completed poll cycle.
func RecordPollCycle(durationSeconds float64, completedAtUnix int64) {
	DefaultMetrics.PollCyclesTotal.Inc()
	DefaultMetrics.PollCycleDuration.Observe(durationSeconds)
	DefaultMetrics.LastSuccessfulPoll.Set(float64(completedAtUnix))
}

// RecordPollTokenError records a per-token poll failure.
func RecordPollTokenError(stage string) {
	DefaultMetrics.PollTokenErrors.WithLabelValues(stage).Inc()
}
