package filter

import (
	"context"
	"time"

	"github.com/meridiangw/gateway/internal/backend"
	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
)

// routerConfig carries the invoker timeout (spec.md §5); absent config
// falls back to backend.DefaultTimeout.
type routerConfig struct {
	TimeoutMs int64 `json:"timeoutMs"`
}

// RouterFilter is in every chain, ordered after every filter except
// circuit_breaker_result_filter and monitor_end_filter: it calls the backend
// instance the load balancer chose and writes the response (or fails the
// context) onto ctx.
type RouterFilter struct {
	client *backend.Client
}

// NewRouterFilter returns the router_filter singleton, dispatching through
// client.
func NewRouterFilter(client *backend.Client) *RouterFilter {
	return &RouterFilter{client: client}
}

func (f *RouterFilter) ID() string   { return "router_filter" }
func (f *RouterFilter) Name() string { return "router" }
func (f *RouterFilter) Order() int   { return OrderRouter }

func (f *RouterFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if ctx.Request.ModifyHost == "" {
		return fail(ctx, errors.ErrServiceInstanceNotFound)
	}

	timeout := backend.DefaultTimeout
	if ctx.Rule != nil {
		if fc, ok := ctx.Rule.FilterConfigByID(f.ID()); ok {
			var cfg routerConfig
			if err := unmarshalJSON(fc.Config, &cfg); err == nil && cfg.TimeoutMs > 0 {
				timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
			}
		}
	}

	resp, err := f.client.Send(context.Background(), ctx.Request, ctx.Request.ModifyHost, timeout)
	if err != nil {
		ctx.SetAttribute(attrBackendErr, err)
		return fail(ctx, errors.ErrHTTPResponse)
	}

	ctx.Write(resp)
	return nil
}

const attrBackendErr = "backend_error"
