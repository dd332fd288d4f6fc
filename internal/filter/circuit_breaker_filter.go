package filter

import (
	"time"

	"github.com/meridiangw/gateway/internal/circuitbreaker"
	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/metrics"
)

const (
	attrBreaker   = "circuit_breaker"
	attrStartTime = "circuit_breaker_start"
)

// circuitBreakerConfig is CircuitBreakerConfig (spec.md §3) as decoded from
// a rule's opaque filter config.
type circuitBreakerConfig struct {
	FailureThresholdPercentage int    `json:"failureThresholdPercentage"`
	MinRequestThreshold        int    `json:"minRequestThreshold"`
	TimeoutMs                  int64  `json:"timeoutMs"`
	HalfOpenMaxRequests        int    `json:"halfOpenMaxRequests"`
	HalfOpenSuccessThreshold   int    `json:"halfOpenSuccessThreshold"`
	WindowSizeMs               int64  `json:"windowSizeMs"`
	BucketCount                int    `json:"bucketCount"`
	FallbackResponse           string `json:"fallbackResponse"`
}

func (c circuitBreakerConfig) toBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThresholdPercentage: c.FailureThresholdPercentage,
		MinRequestThreshold:        c.MinRequestThreshold,
		Timeout:                    time.Duration(c.TimeoutMs) * time.Millisecond,
		HalfOpenMaxRequests:        c.HalfOpenMaxRequests,
		HalfOpenSuccessThreshold:   c.HalfOpenSuccessThreshold,
		WindowSize:                 time.Duration(c.WindowSizeMs) * time.Millisecond,
		BucketCount:                c.BucketCount,
		FallbackResponse:           c.FallbackResponse,
	}
}

// CircuitBreakerFilter is the admission half of the breaker: it consults
// (and, on first use, constructs) the rule's Breaker and either admits the
// request or short-circuits with a fallback or SERVICE_UNAVAILABLE.
type CircuitBreakerFilter struct {
	breakers *circuitbreaker.Registry
	metrics  metrics.Collector
}

// NewCircuitBreakerFilter returns the circuit_breaker_filter singleton,
// backed by breakers. collector may be nil, in which case breaker state
// transitions are discarded.
func NewCircuitBreakerFilter(breakers *circuitbreaker.Registry, collector metrics.Collector) *CircuitBreakerFilter {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &CircuitBreakerFilter{breakers: breakers, metrics: collector}
}

func (f *CircuitBreakerFilter) ID() string   { return "circuit_breaker_filter" }
func (f *CircuitBreakerFilter) Name() string { return "circuit_breaker" }
func (f *CircuitBreakerFilter) Order() int   { return OrderCircuitBreaker }

func (f *CircuitBreakerFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if ctx.Rule == nil {
		return nil
	}
	fc, ok := ctx.Rule.FilterConfigByID(f.ID())
	if !ok {
		return nil
	}
	var cfg circuitBreakerConfig
	if err := unmarshalJSON(fc.Config, &cfg); err != nil {
		return nil
	}

	breaker := f.breakers.GetOrCreate(ctx.Rule.ID, cfg.toBreakerConfig())
	f.metrics.SetCircuitBreakerState(ctx.Rule.ID, int(breaker.State()))

	if !breaker.AllowRequest() {
		if body, ok := breaker.FallbackResponse(); ok {
			ctx.Write(&gwcontext.GatewayResponse{StatusCode: 200, Body: []byte(body)})
			ctx.Terminated()
			return nil
		}
		return fail(ctx, errors.ErrGatewayServiceUnavailable)
	}

	ctx.SetAttribute(attrBreaker, breaker)
	ctx.SetAttribute(attrStartTime, time.Now())
	return nil
}
