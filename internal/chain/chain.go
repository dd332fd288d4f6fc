// Package chain is the Filter Chain Factory (spec.md §4.6): it builds an
// ordered, cached filter chain per Rule and drives its execution.
package chain

import (
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridiangw/gateway/internal/filter"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/registry"
)

const cacheTTL = 10 * time.Minute
const cacheSize = 4096

// Chain is an ordered, immutable list of filters built for one rule.
type Chain struct {
	filters []filter.Filter
}

// Execute runs every filter in order. A filter that terminates the context
// stops the main walk, but ResultFilterID and MonitorEndFilterID always run
// regardless — the "finally"-equivalent block spec.md §4.6 requires so a
// circuit breaker admitted through always records its outcome and every
// request gets an access-log line.
func (c *Chain) Execute(ctx *gwcontext.GatewayContext) {
	for _, f := range c.filters {
		if ctx.IsTerminated() && f.ID() != filter.ResultFilterID && f.ID() != filter.MonitorEndFilterID {
			continue
		}
		_ = f.DoFilter(ctx)
	}
}

// Factory builds and caches chains by rule id.
type Factory struct {
	registry *filter.Registry
	preRule  []filter.Filter // gray, monitor start, monitor end anchor — seeded into every chain
	router   filter.Filter
	cache    *lru.LRU[string, *Chain]
}

// NewFactory returns a Factory. filters is the process-wide set of known
// filter singletons; router is always appended after the rule's filters
// (followed by circuit_breaker_result_filter when the rule configures
// circuit_breaker_filter) before sorting.
func NewFactory(filters *filter.Registry, preRule []filter.Filter, router filter.Filter) *Factory {
	return &Factory{
		registry: filters,
		preRule:  preRule,
		router:   router,
		cache:    lru.NewLRU[string, *Chain](cacheSize, nil, cacheTTL),
	}
}

// Build returns the cached chain for rule, constructing and caching it on
// first use. A rule replaced in place under the same id can still serve a
// stale cached chain until the 10-minute TTL evicts it (spec.md §9) — callers
// that need immediate invalidation must assign the replacement a new rule id.
func (f *Factory) Build(rule *registry.Rule) *Chain {
	if c, ok := f.cache.Get(rule.ID); ok {
		return c
	}

	filters := make([]filter.Filter, 0, len(f.preRule)+len(rule.FilterConfigs)+2)
	filters = append(filters, f.preRule...)

	hasBreaker := false
	for _, fc := range rule.FilterConfigs {
		fn, ok := f.registry.Get(fc.ID)
		if !ok {
			continue
		}
		filters = append(filters, fn)
		if fc.ID == "circuit_breaker_filter" {
			hasBreaker = true
		}
	}

	filters = append(filters, f.router)
	if hasBreaker {
		if rf, ok := f.registry.Get(filter.ResultFilterID); ok {
			filters = append(filters, rf)
		}
	}

	sort.SliceStable(filters, func(i, j int) bool {
		return filters[i].Order() < filters[j].Order()
	})

	c := &Chain{filters: filters}
	f.cache.Add(rule.ID, c)
	return c
}
