package loadbalancer

import (
	"sync"

	"github.com/meridiangw/gateway/internal/registry"
)

// WeightedRoundRobin is the supplemental strategy spec.md §9 reserves
// `ServiceInstance.Weight` for: a GCD-based (interleaved, not smooth)
// weighted round-robin over E, keyed
// per serviceID the same way RoundRobin is. Enabled only when a rule's
// `load_balance_key` is `weighted_round_robin`; Random/RoundRobin ignore
// Weight entirely.
type WeightedRoundRobin struct {
	mu     sync.Mutex
	states map[string]*wrrState
}

type wrrState struct {
	current    int
	gcd        int
	maxWeight  int
	totalSeen  int // sum of weights last time this service's state was built
	countSeen  int // len(eligible) last time this service's state was built
}

// NewWeightedRoundRobin returns an empty WeightedRoundRobin strategy.
func NewWeightedRoundRobin() *WeightedRoundRobin {
	return &WeightedRoundRobin{states: make(map[string]*wrrState)}
}

func (wrr *WeightedRoundRobin) Next(serviceID string, eligible []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleInstance
	}

	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	st, ok := wrr.states[serviceID]
	total := sumWeights(eligible)
	if !ok || st.countSeen != len(eligible) || st.totalSeen != total {
		st = &wrrState{current: -1}
		st.gcd, st.maxWeight = weightGCDAndMax(eligible)
		st.totalSeen = total
		st.countSeen = len(eligible)
		wrr.states[serviceID] = st
	}

	for {
		st.current = (st.current + 1) % len(eligible)
		if st.current == 0 {
			st.maxWeight -= st.gcd
			if st.maxWeight <= 0 {
				_, st.maxWeight = weightGCDAndMax(eligible)
			}
		}
		if instanceWeight(eligible[st.current]) >= st.maxWeight {
			return eligible[st.current], nil
		}
	}
}

func instanceWeight(i *registry.ServiceInstance) int {
	if i.Weight <= 0 {
		return 1
	}
	return i.Weight
}

func sumWeights(instances []*registry.ServiceInstance) int {
	total := 0
	for _, i := range instances {
		total += instanceWeight(i)
	}
	return total
}

func weightGCDAndMax(instances []*registry.ServiceInstance) (g, max int) {
	g = instanceWeight(instances[0])
	max = g
	for _, i := range instances[1:] {
		w := instanceWeight(i)
		g = gcd(g, w)
		if w > max {
			max = w
		}
	}
	return g, max
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
