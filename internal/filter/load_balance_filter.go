package filter

import (
	"github.com/meridiangw/gateway/internal/errors"
	"github.com/meridiangw/gateway/internal/gwcontext"
	"github.com/meridiangw/gateway/internal/loadbalancer"
	"github.com/meridiangw/gateway/internal/registry"
)

// loadBalanceConfig selects which loadbalancer.Strategy a rule uses.
type loadBalanceConfig struct {
	LoadBalanceKey string `json:"load_balance_key"`
}

// LoadBalanceFilter picks a healthy, gray-matched instance and points the
// outbound request at it.
type LoadBalanceFilter struct {
	reg        *registry.Registry
	random     loadbalancer.Strategy
	roundRobin loadbalancer.Strategy
	weighted   loadbalancer.Strategy
}

// NewLoadBalanceFilter returns the load_balance_filter singleton, reading
// instances from reg.
func NewLoadBalanceFilter(reg *registry.Registry) *LoadBalanceFilter {
	return &LoadBalanceFilter{
		reg:        reg,
		random:     loadbalancer.NewRandom(),
		roundRobin: loadbalancer.NewRoundRobin(),
		weighted:   loadbalancer.NewWeightedRoundRobin(),
	}
}

func (f *LoadBalanceFilter) ID() string   { return "load_balance_filter" }
func (f *LoadBalanceFilter) Name() string { return "load_balance" }
func (f *LoadBalanceFilter) Order() int   { return OrderLoadBalance }

func (f *LoadBalanceFilter) DoFilter(ctx *gwcontext.GatewayContext) error {
	if ctx.Rule == nil {
		return fail(ctx, errors.ErrServiceInstanceNotFound)
	}

	strategy := f.random
	if fc, ok := ctx.Rule.FilterConfigByID(f.ID()); ok {
		var cfg loadBalanceConfig
		if err := unmarshalJSON(fc.Config, &cfg); err == nil {
			switch loadbalancer.Key(cfg.LoadBalanceKey) {
			case loadbalancer.KeyRoundRobin:
				strategy = f.roundRobin
			case loadbalancer.KeyWeightedRoundRobin:
				strategy = f.weighted
			case loadbalancer.KeyRandom, "":
				strategy = f.random
			}
		}
	}

	instances := f.reg.GetInstances(ctx.Request.UniqueID)
	eligible := loadbalancer.Eligible(instances, ctx.Gray)
	inst, err := strategy.Next(ctx.Rule.ServiceID, eligible)
	if err != nil {
		return fail(ctx, errors.ErrServiceInstanceNotFound)
	}

	ctx.Request.ModifyHost = inst.Address()
	ctx.SetAttribute("instance", inst)
	return nil
}
