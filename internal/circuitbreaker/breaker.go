// Package circuitbreaker implements the three-state breaker (CLOSED, OPEN,
// HALF_OPEN) each rule's circuit_breaker_filter consults, backed by a
// sliding-window failure-rate statistic.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/meridiangw/gateway/internal/slidingwindow"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config is CircuitBreakerConfig from the data model (spec.md §3).
type Config struct {
	FailureThresholdPercentage int           // [1,100]
	MinRequestThreshold        int           // >= 1
	Timeout                    time.Duration // open->half-open dwell, >= 1s
	HalfOpenMaxRequests        int           // >= 1
	HalfOpenSuccessThreshold   int           // <= HalfOpenMaxRequests
	WindowSize                 time.Duration // >= 10s
	BucketCount                int           // [2,100]
	FallbackResponse           string        // optional, empty means none configured
}

// Breaker is a single rule's circuit breaker.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	halfOpenAdmitted int
	halfOpenSuccess  int
	stateChangeTime  time.Time
	lastFailureTime  time.Time

	window *slidingwindow.Window
}

// New constructs a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:             cfg,
		state:           StateClosed,
		stateChangeTime: time.Now(),
		window:          slidingwindow.New(cfg.WindowSize.Milliseconds(), cfg.BucketCount),
	}
}

// AllowRequest is the admission decision (spec.md §4.3).
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.stateChangeTime) >= b.cfg.Timeout {
			b.transitionLocked(StateHalfOpen)
			b.halfOpenAdmitted = 1
			return true
		}
		return false

	case StateHalfOpen:
		if b.halfOpenAdmitted < b.cfg.HalfOpenMaxRequests {
			b.halfOpenAdmitted++
			return true
		}
		return false
	}
	return false
}

// RecordResult records a request's outcome (spec.md §4.3).
func (b *Breaker) RecordResult(success bool, responseTimeMs int64) {
	b.window.AddSample(success, responseTimeMs)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.lastFailureTime = time.Now()
	}

	switch b.state {
	case StateClosed:
		if !success {
			stats := b.window.Stats()
			if stats.TotalRequests >= uint64(b.cfg.MinRequestThreshold) &&
				stats.FailureRate >= float64(b.cfg.FailureThresholdPercentage) {
				b.transitionLocked(StateOpen)
			}
		}
		// CLOSED + success: the sliding window already supersedes a scalar
		// failureCount, so there is nothing further to reset here.

	case StateHalfOpen:
		if success {
			b.halfOpenSuccess++
			if b.halfOpenSuccess >= b.cfg.HalfOpenSuccessThreshold {
				b.transitionLocked(StateClosed)
			}
		} else {
			b.transitionLocked(StateOpen)
		}

	case StateOpen:
		// Admission should have rejected; recording here would indicate an
		// admission/result-recording mismatch upstream. No transition.
	}
}

// transitionLocked performs a state transition and resets the counters
// spec.md §4.3 assigns to each state's entry. Caller must hold b.mu.
func (b *Breaker) transitionLocked(to State) {
	b.state = to
	b.stateChangeTime = time.Now()

	switch to {
	case StateClosed:
		b.halfOpenAdmitted = 0
		b.halfOpenSuccess = 0
		b.window.Reset()
	case StateOpen:
		b.halfOpenAdmitted = 0
	case StateHalfOpen:
		b.halfOpenSuccess = 0
		b.halfOpenAdmitted = 0
	}
}

// ForceOpen moves the breaker to OPEN from any state, as an operational
// override; it updates stateChangeTime like every other transition.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateOpen)
}

// ForceClose moves the breaker to CLOSED from any state, as an operational
// override; it updates stateChangeTime like every other transition.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed)
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FallbackResponse returns the configured fallback body, if any.
func (b *Breaker) FallbackResponse() (string, bool) {
	return b.cfg.FallbackResponse, b.cfg.FallbackResponse != ""
}

// Snapshot is a point-in-time view for the admin endpoint.
type Snapshot struct {
	State            string                  `json:"state"`
	HalfOpenAdmitted int                     `json:"half_open_admitted"`
	StateChangeTime  time.Time               `json:"state_change_time"`
	Stats            slidingwindow.Stats     `json:"stats"`
}

// Snapshot returns a point-in-time view of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	state := b.state
	admitted := b.halfOpenAdmitted
	changeTime := b.stateChangeTime
	b.mu.Unlock()

	return Snapshot{
		State:            state.String(),
		HalfOpenAdmitted: admitted,
		StateChangeTime:  changeTime,
		Stats:            b.window.Stats(),
	}
}

// Registry manages one Breaker per rule id.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry returns an empty breaker Registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the breaker for ruleID, constructing one from cfg on
// first use.
func (r *Registry) GetOrCreate(ruleID string, cfg Config) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[ruleID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[ruleID]; ok {
		return b
	}
	b = New(cfg)
	r.breakers[ruleID] = b
	return b
}

// Snapshots returns a snapshot of every breaker, keyed by rule id.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for id, b := range r.breakers {
		out[id] = b.Snapshot()
	}
	return out
}
