// Package metrics defines the gateway's metrics sink and a
// github.com/prometheus/client_golang-backed implementation of it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector receives gateway telemetry. Filters and the dispatcher depend
// on this interface rather than on Prometheus directly, so a no-op stand-in
// can be used in tests that don't care about metrics.
type Collector interface {
	RecordRequest(ruleID, method string, statusCode int, duration time.Duration)
	RecordRateLimitReject(ruleID string)
	RecordActiveRequest(ruleID string, delta int)
	SetCircuitBreakerState(ruleID string, state int)
}

// NoopCollector discards everything. The zero value is ready to use.
type NoopCollector struct{}

func (NoopCollector) RecordRequest(string, string, int, time.Duration) {}
func (NoopCollector) RecordRateLimitReject(string)                    {}
func (NoopCollector) RecordActiveRequest(string, int)                 {}
func (NoopCollector) SetCircuitBreakerState(string, int)              {}

// PrometheusCollector registers gateway metrics against its own registry,
// independent of the default global registry so multiple gateway instances
// in one process (e.g. under test) don't collide.
type PrometheusCollector struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	activeRequests      *prometheus.GaugeVec
	rateLimitRejects    *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
}

// NewCollector returns a PrometheusCollector with every metric registered.
func NewCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()

	c := &PrometheusCollector{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total requests dispatched, by rule, method, and status.",
		}, []string{"rule_id", "method", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request duration in seconds, by rule.",
			Buckets: prometheus.DefBuckets,
		}, []string{"rule_id"}),
		activeRequests: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_active_requests",
			Help: "In-flight requests, by rule.",
		}, []string{"rule_id"}),
		rateLimitRejects: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejects_total",
			Help: "Total requests rejected by rate_limit_filter, by rule.",
		}, []string{"rule_id"}),
		circuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state per rule: 0=closed, 1=open, 2=half_open.",
		}, []string{"rule_id"}),
	}
	return c
}

func (c *PrometheusCollector) RecordRequest(ruleID, method string, statusCode int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(ruleID, method, statusLabel(statusCode)).Inc()
	c.requestDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordRateLimitReject(ruleID string) {
	c.rateLimitRejects.WithLabelValues(ruleID).Inc()
}

func (c *PrometheusCollector) RecordActiveRequest(ruleID string, delta int) {
	c.activeRequests.WithLabelValues(ruleID).Add(float64(delta))
}

func (c *PrometheusCollector) SetCircuitBreakerState(ruleID string, state int) {
	c.circuitBreakerState.WithLabelValues(ruleID).Set(float64(state))
}

// Handler exposes the Prometheus text exposition format for the admin
// surface's /metrics endpoint.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "0"
	}
}
