package filter

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/metrics"
)

// rateLimitConfig is rate_limit_filter's opaque config (spec.md §6).
type rateLimitConfig struct {
	LimitType         string `json:"limitType"` // ip, user, api, service, global
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	TimeoutMs         int     `json:"timeoutMs"`
	Algorithm         string  `json:"algorithm"` // decoded but not read: every limiter is a token bucket
}

const limiterCacheSize = 10_000
const limiterCacheTTL = 10 * time.Minute

// RateLimitFilter builds a key per rule's limitType and admits requests
// through a cached token bucket keyed by that key.
type RateLimitFilter struct {
	mu      sync.Mutex
	buckets map[string]*lru.LRU[string, *rate.Limiter]
	metrics metrics.Collector
}

// NewRateLimitFilter returns the rate_limit_filter singleton. collector may
// be nil, in which case rejections are discarded.
func NewRateLimitFilter(collector metrics.Collector) *RateLimitFilter {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &RateLimitFilter{
		buckets: make(map[string]*lru.LRU[string, *rate.Limiter]),
		metrics: collector,
	}
}

func (f *RateLimitFilter) ID() string   { return "rate_limit_filter" }
func (f *RateLimitFilter) Name() string { return "rate_limit" }
func (f *RateLimitFilter) Order() int   { return OrderRateLimit }

func (f *RateLimitFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if ctx.Rule == nil {
		return nil
	}
	fc, ok := ctx.Rule.FilterConfigByID(f.ID())
	if !ok {
		return nil
	}
	var cfg rateLimitConfig
	if err := unmarshalJSON(fc.Config, &cfg); err != nil || cfg.RequestsPerSecond <= 0 {
		return nil
	}

	cache := f.cacheFor(ctx.Rule.ID)
	key := rateLimitKey(cfg.LimitType, ctx)

	limiter, ok := cache.Get(key)
	if !ok {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		cache.Add(key, limiter)
	}

	if !f.tryAcquire(limiter, time.Duration(cfg.TimeoutMs)*time.Millisecond) {
		f.metrics.RecordRateLimitReject(ctx.Rule.ID)
		return fail(ctx, errors.ErrGatewayServiceUnavailable)
	}
	return nil
}

// cacheFor returns the sized, time-evicting limiter cache for a rule,
// constructing it on first use. One cache per rule keeps cardinality bounded
// by the rule's own key space instead of sharing one global cache across all
// rules' limitType keys.
func (f *RateLimitFilter) cacheFor(ruleID string) *lru.LRU[string, *rate.Limiter] {
	f.mu.Lock()
	defer f.mu.Unlock()
	cache, ok := f.buckets[ruleID]
	if !ok {
		cache = lru.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterCacheTTL)
		f.buckets[ruleID] = cache
	}
	return cache
}

// tryAcquire obtains a token within timeout, or reports failure. A
// WaitN reservation is cancelled on context deadline, satisfying "obtain
// or timeout" without a busy-poll loop.
func (f *RateLimitFilter) tryAcquire(limiter *rate.Limiter, timeout time.Duration) bool {
	if timeout <= 0 {
		return limiter.Allow()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return limiter.Wait(ctx) == nil
}

func rateLimitKey(limitType string, ctx *gwcontext.GatewayContext) string {
	switch limitType {
	case "user":
		return "user:" + ctx.Request.Headers.Get("X-User-Id")
	case "api":
		return "api:" + ctx.Request.Path
	case "service":
		if ctx.Rule != nil {
			return "service:" + ctx.Rule.ServiceID
		}
		return "service:"
	case "global":
		return "global"
	default: // "ip"
		return "ip:" + ctx.Request.ClientIP
	}
}
