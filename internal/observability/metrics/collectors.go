// Package metrics hosts the prometheus/client_golang collectors every
// other component feeds. Serving the /metrics HTTP endpoint is an
// external collaborator (this package never owns an HTTP route); it
// only registers and updates the collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every Prometheus metric this repo feeds, one field
// per component that produces a measurable event.
type Collectors struct {
	TradesIngested      *prometheus.CounterVec
	BarsEmitted         *prometheus.CounterVec
	OrderBookUpdateLatency *prometheus.HistogramVec

	RiskGateRejections *prometheus.CounterVec
	CircuitBreakerOpen *prometheus.GaugeVec

	OrdersRouted  *prometheus.CounterVec
	RouteRetries  *prometheus.CounterVec
	RouteLatency  *prometheus.HistogramVec

	MessagesPublished *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec

	ObservabilityWriteErrors *prometheus.CounterVec

	FeedMessagesRejected *prometheus.CounterVec
}

// New registers every collector against the default Prometheus
// registry via promauto.
func New() *Collectors {
	return &Collectors{
		TradesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_trades_ingested_total",
				Help: "Total number of trades folded into bar accumulators",
			},
			[]string{"symbol"},
		),
		BarsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_bars_emitted_total",
				Help: "Total number of bars emitted on window-boundary cross",
			},
			[]string{"symbol", "window"},
		),
		OrderBookUpdateLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trading_orderbook_update_latency_seconds",
				Help:    "Latency of order book ladder updates",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
			[]string{"symbol"},
		),
		RiskGateRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_risk_gate_rejections_total",
				Help: "Total number of orders rejected per risk gate",
			},
			[]string{"gate"},
		),
		CircuitBreakerOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trading_circuit_breaker_open",
				Help: "1 when the risk kernel circuit breaker is open, 0 otherwise",
			},
			[]string{"component"},
		),
		OrdersRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_orders_routed_total",
				Help: "Total number of orders routed to a broker",
			},
			[]string{"symbol", "side", "type"},
		),
		RouteRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_route_retries_total",
				Help: "Total number of retry attempts made by the execution router",
			},
			[]string{"symbol"},
		),
		RouteLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trading_route_latency_seconds",
				Help:    "Latency of the execution router's Route operation",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
			},
			[]string{"symbol"},
		),
		MessagesPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_messages_published_total",
				Help: "Total number of messages published on the in-process bus",
			},
			[]string{"topic"},
		),
		MessagesDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_messages_dropped_total",
				Help: "Total number of undecodable messages dropped by a subscriber",
			},
			[]string{"topic"},
		),
		ObservabilityWriteErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_observability_write_errors_total",
				Help: "Total number of non-fatal write failures against the observability store",
			},
			[]string{"operation"},
		),
		FeedMessagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_feed_messages_rejected_total",
				Help: "Total number of inbound feed messages rejected at ingestion",
			},
			[]string{"reason"},
		),
	}
}

// ObserveRouteLatency is a small convenience wrapper around the
// elapsed-time.Seconds() Observe pattern used across this package.
func (c *Collectors) ObserveRouteLatency(symbol string, since time.Time) {
	c.RouteLatency.WithLabelValues(symbol).Observe(time.Since(since).Seconds())
}
