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
	// Chain metrics
	ContractCallLatency *prometheus.HistogramVec
	ContractCallErrors  *prometheus.CounterVec
	RPCRetries          *prometheus.CounterVec
	TransactionsTotal   *prometheus.CounterVec
	ConfirmationLatency prometheus.Histogram

	// Wallet metrics
	WalletConnected prometheus.Gauge
	WalletEvents    *prometheus.CounterVec

	// Cache metrics
	CacheRefreshes      *prometheus.CounterVec
	CacheRefreshLatency *prometheus.HistogramVec
	CacheEntries        *prometheus.GaugeVec

	// API metrics
	APIRequests     *prometheus.CounterVec
	APIRateLimited  prometheus.Counter
	FeedSubscribers prometheus.Gauge
	FeedDropped     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "estate_hub"
	}

	return &Metrics{
		// Chain metrics
		ContractCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "contract_call_latency_seconds",
			Help:      "Contract call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"contract", "method"}),
		ContractCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "contract_call_errors_total",
			Help:      "Total number of failed contract calls",
		}, []string{"contract", "method"}),
		RPCRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_retries_total",
			Help:      "Total number of retried read RPC calls",
		}, []string{"method"}),
		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Total number of transactions by kind and status",
		}, []string{"kind", "status"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to receipt in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		// Wallet metrics
		WalletConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "connected",
			Help:      "1 when a wallet session is connected",
		}),
		WalletEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "events_total",
			Help:      "Total number of wallet lifecycle events by type",
		}, []string{"type"}),

		// Cache metrics
		CacheRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "refreshes_total",
			Help:      "Total number of cache refreshes by cache and status",
		}, []string{"cache", "status"}),
		CacheRefreshLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "refresh_latency_seconds",
			Help:      "Cache refresh latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cache"}),
		CacheEntries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries in each cache after the last refresh",
		}, []string{"cache"}),

		// API metrics
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"method", "route", "code"}),
		APIRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of feed subscribers",
		}),
		FeedDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_events_total",
			Help:      "Total number of events dropped for slow subscribers",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordContractCall records the latency and outcome of a contract call.
func RecordContractCall(contract, method string, seconds float64, err error) {
	DefaultMetrics.ContractCallLatency.WithLabelValues(contract, method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ContractCallErrors.WithLabelValues(contract, method).Inc()
	}
}

// RecordRPCRetry increments the read retry counter.
func RecordRPCRetry(method string) {
	DefaultMetrics.RPCRetries.WithLabelValues(method).Inc()
}

// RecordTransaction counts a journaled transaction status.
func RecordTransaction(kind, status string) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordConfirmation records how long a transaction took to be mined.
func RecordConfirmation(seconds float64) {
	DefaultMetrics.ConfirmationLatency.Observe(seconds)
}

// SetWalletConnected updates the wallet connected gauge.
func SetWalletConnected(connected bool) {
	if connected {
		DefaultMetrics.WalletConnected.Set(1)
		return
	}
	DefaultMetrics.WalletConnected.Set(0)
}

// RecordWalletEvent counts a wallet lifecycle event.
func RecordWalletEvent(eventType string) {
	DefaultMetrics.WalletEvents.WithLabelValues(eventType).Inc()
}

// RecordCacheRefresh records a cache refresh.
func RecordCacheRefresh(cache string, entries int, seconds float64, err error) {
	DefaultMetrics.CacheRefreshLatency.WithLabelValues(cache).Observe(seconds)
	if err != nil {
		DefaultMetrics.CacheRefreshes.WithLabelValues(cache, "error").Inc()
		return
	}
	DefaultMetrics.CacheRefreshes.WithLabelValues(cache, "ok").Inc()
	DefaultMetrics.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordAPIRequest counts a served API request.
func RecordAPIRequest(method, route, code string) {
	DefaultMetrics.APIRequests.WithLabelValues(method, route, code).Inc()
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited() {
	DefaultMetrics.APIRateLimited.Inc()
}

// AddFeedSubscribers adjusts the feed subscriber gauge.
func AddFeedSubscribers(delta int) {
	DefaultMetrics.FeedSubscribers.Add(float64(delta))
}

// RecordFeedDropped counts an event dropped for a slow subscriber.
func RecordFeedDropped() {
	DefaultMetrics.FeedDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
