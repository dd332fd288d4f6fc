// Package filter implements the pluggable per-rule filter chain stages
// spec.md §4.5 names: gray, IP security, rate limit, load balance, circuit
// breaker admission, router, circuit breaker result, and monitor.
package filter

import (
	"math"

	"github.com/meridiangw/gateway/internal/gwcontext"
)

// Order constants place each built-in filter at the position spec.md §4.5's
// table specifies. Filter instances are process-lifetime singletons.
const (
	OrderMonitorStart     = math.MinInt
	OrderGray             = -100
	OrderIPSecurity       = -10
	OrderRateLimit        = 1
	OrderLoadBalance      = 50
	OrderCircuitBreaker   = 95
	OrderRouter           = 900
	OrderCircuitBreakerResult = math.MaxInt - 1
	OrderMonitorEnd       = math.MaxInt
)

// ResultFilterID and MonitorEndFilterID identify the two filters the chain
// runner's "finally" pass always invokes, even when an earlier filter
// terminated the context (spec.md §4.6).
const (
	ResultFilterID     = "circuit_breaker_result_filter"
	MonitorEndFilterID = "monitor_end_filter"
)

// Filter is a single stage in a rule's processing pipeline.
type Filter interface {
	ID() string
	Name() string
	Order() int
	DoFilter(ctx *gwcontext.GatewayContext) error
}

// Registry holds filter singletons keyed by id, built at startup
// (spec.md §9 "filter discovery": explicit registration, not service-loader
// discovery by annotation).
type Registry struct {
	filters map[string]Filter
}

// NewRegistry returns an empty FilterRegistry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Filter)}
}

// Register adds a filter singleton, keyed by its id.
func (r *Registry) Register(f Filter) {
	r.filters[f.ID()] = f
}

// Get looks up a filter by id.
func (r *Registry) Get(id string) (Filter, bool) {
	f, ok := r.filters[id]
	return f, ok
}
