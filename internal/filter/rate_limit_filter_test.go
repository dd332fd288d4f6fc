package filter

import (
	"testing"

	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/registry"
)

func newRateLimitTestContext(rule *registry.Rule, clientIP string) *gwcontext.GatewayContext {
	req := &gwcontext.GatewayRequest{ClientIP: clientIP, Path: "/orders"}
	return gwcontext.New(req, rule, "req-1")
}

// A single-token-per-second bucket admits its initial burst then rejects
// the very next request — spec.md §8 scenario 5.
func TestRateLimitFilterRejectsBurstOverage(t *testing.T) {
	rule := &registry.Rule{
		ID: "rule-1",
		FilterConfigs: []registry.FilterConfig{
			{ID: "rate_limit_filter", Config: `{"limitType":"ip","requestsPerSecond":1}`},
		},
	}

	f := NewRateLimitFilter(metrics.NoopCollector{})

	ctx := newRateLimitTestContext(rule, "10.0.0.1")
	if err := f.DoFilter(ctx); err != nil {
		t.Fatalf("first request: DoFilter() error = %v, want nil (within burst)", err)
	}

	ctx2 := newRateLimitTestContext(rule, "10.0.0.1")
	if err := f.DoFilter(ctx2); err == nil {
		t.Fatal("second request: DoFilter() = nil, want rejection once the burst is exhausted")
	}
	if !ctx2.IsTerminated() {
		t.Fatal("rejected request should terminate the context")
	}
}

// Distinct rate-limit keys (here, distinct client IPs under limitType "ip")
// get independent buckets.
func TestRateLimitFilterKeysByClientIP(t *testing.T) {
	rule := &registry.Rule{
		ID: "rule-1",
		FilterConfigs: []registry.FilterConfig{
			{ID: "rate_limit_filter", Config: `{"limitType":"ip","requestsPerSecond":1}`},
		},
	}

	f := NewRateLimitFilter(metrics.NoopCollector{})

	ctxA := newRateLimitTestContext(rule, "10.0.0.1")
	if err := f.DoFilter(ctxA); err != nil {
		t.Fatalf("client A: DoFilter() error = %v, want nil", err)
	}

	ctxB := newRateLimitTestContext(rule, "10.0.0.2")
	if err := f.DoFilter(ctxB); err != nil {
		t.Fatalf("client B: DoFilter() error = %v, want nil (independent bucket)", err)
	}
}

// A rule with no rate_limit_filter config is unaffected — the filter is a
// no-op until a rule opts in.
func TestRateLimitFilterNoOpWithoutConfig(t *testing.T) {
	rule := &registry.Rule{ID: "rule-1"}
	f := NewRateLimitFilter(metrics.NoopCollector{})

	for i := 0; i < 5; i++ {
		ctx := newRateLimitTestContext(rule, "10.0.0.1")
		if err := f.DoFilter(ctx); err != nil {
			t.Fatalf("iteration %d: DoFilter() error = %v, want nil", i, err)
		}
	}
}
