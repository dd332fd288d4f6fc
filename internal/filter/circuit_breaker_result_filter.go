package filter

import (
	"time"

	"github.com/meridiangw/gateway/internal/circuitbreaker"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/metrics"
)

// CircuitBreakerResultFilter records the outcome of a request against the
// breaker circuit_breaker_filter stashed, if any. The chain runner invokes
// this filter even when an earlier stage (typically router_filter)
// terminated the context, so a failed call still reaches the breaker it was
// admitted through.
type CircuitBreakerResultFilter struct {
	metrics metrics.Collector
}

// NewCircuitBreakerResultFilter returns the circuit_breaker_result_filter
// singleton. collector may be nil, in which case breaker state transitions
// are discarded.
func NewCircuitBreakerResultFilter(collector metrics.Collector) *CircuitBreakerResultFilter {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &CircuitBreakerResultFilter{metrics: collector}
}

func (f *CircuitBreakerResultFilter) ID() string   { return ResultFilterID }
func (f *CircuitBreakerResultFilter) Name() string { return "circuit_breaker_result" }
func (f *CircuitBreakerResultFilter) Order() int   { return OrderCircuitBreakerResult }

func (f *CircuitBreakerResultFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	v, ok := ctx.Attribute(attrBreaker)
	if !ok {
		return nil
	}
	breaker, ok := v.(*circuitbreaker.Breaker)
	if !ok {
		return nil
	}

	var rtMs int64
	if sv, ok := ctx.Attribute(attrStartTime); ok {
		if start, ok := sv.(time.Time); ok {
			rtMs = time.Since(start).Milliseconds()
		}
	}

	success := ctx.Err == nil && ctx.Response != nil && ctx.Response.StatusCode < 500
	breaker.RecordResult(success, rtMs)

	if ctx.Rule != nil {
		f.metrics.SetCircuitBreakerState(ctx.Rule.ID, int(breaker.State()))
	}
	return nil
}
