package loadbalancer

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/meridiangw/gateway/internal/registry"
)

// Random picks uniformly from the eligible set using math/rand/v2's
// top-level source, which is already a fast, lock-free, goroutine-safe
// generator — no extra locking needed to satisfy the "thread-safe RNG"
// requirement.
type Random struct{}

// NewRandom returns a Random strategy.
func NewRandom() *Random { return &Random{} }

func (Random) Next(serviceID string, eligible []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleInstance
	}
	return eligible[rand.IntN(len(eligible))], nil
}

// RoundRobin maintains a monotonic per-service counter; it returns
// eligible[counter mod n] then increments. The counter is shared across
// calls for the same serviceID regardless of which instances happen to be
// eligible on a given call, matching spec.md §4.4's "the counter is
// strictly monotonic; skipping a disabled instance does not advance it
// twice" — a disabled instance is excluded from E rather than visited and
// skipped, so no double-increment can occur.
type RoundRobin struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Uint64
}

// NewRoundRobin returns an empty RoundRobin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{counters: make(map[string]*atomic.Uint64)}
}

func (rr *RoundRobin) Next(serviceID string, eligible []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleInstance
	}
	counter := rr.counterFor(serviceID)
	idx := counter.Add(1) - 1
	return eligible[idx%uint64(len(eligible))], nil
}

func (rr *RoundRobin) counterFor(serviceID string) *atomic.Uint64 {
	rr.mu.RLock()
	c, ok := rr.counters[serviceID]
	rr.mu.RUnlock()
	if ok {
		return c
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if c, ok := rr.counters[serviceID]; ok {
		return c
	}
	c = &atomic.Uint64{}
	rr.counters[serviceID] = c
	return c
}
