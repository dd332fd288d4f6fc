// Package loadbalancer selects a service instance from the gray-filtered
// eligible set a rule's load_balance_filter assembles (spec.md §4.4).
package loadbalancer

import (
	"fmt"

	"github.com/meridiangw/gateway/internal/registry"
)

// ErrNoEligibleInstance is returned when E, the gray-filtered enabled
// instance set, is empty. The caller maps this to SERVICE_INSTANCE_NOT_FOUND.
var ErrNoEligibleInstance = fmt.Errorf("loadbalancer: no eligible instance")

// Eligible computes E = {i ∈ instances | i.Enable ∧ i.Gray == gray}, the set
// every strategy in this package selects from.
func Eligible(instances []*registry.ServiceInstance, gray bool) []*registry.ServiceInstance {
	out := make([]*registry.ServiceInstance, 0, len(instances))
	for _, i := range instances {
		if i.Enable && i.Gray == gray {
			out = append(out, i)
		}
	}
	return out
}

// Strategy selects one instance from an already-eligible set for a given
// service. Implementations are per-serviceId singletons: strategies that
// carry state (round-robin counters) key that state by serviceID.
type Strategy interface {
	Next(serviceID string, eligible []*registry.ServiceInstance) (*registry.ServiceInstance, error)
}

// Key names the strategy a rule's load_balance_filter config selects by
// `load_balance_key`.
type Key string

const (
	KeyRandom             Key = "random"
	KeyRoundRobin         Key = "round_robin"
	KeyWeightedRoundRobin Key = "weighted_round_robin"
)
