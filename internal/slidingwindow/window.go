// Package slidingwindow implements the bucketed statistics window the
// circuit breaker aggregates failure rate and latency from.
package slidingwindow

import (
	"sync"
	"sync/atomic"
	"time"
)

type bucket struct {
	timestamp           atomic.Int64 // ms epoch of the write that last reset this slot
	totalRequests       atomic.Uint64
	failureCount        atomic.Uint64
	totalResponseTimeMs atomic.Uint64
}

func (b *bucket) resetTo(now int64) {
	b.timestamp.Store(now)
	b.totalRequests.Store(0)
	b.failureCount.Store(0)
	b.totalResponseTimeMs.Store(0)
}

// Stats is the aggregated view returned by Window.Stats.
type Stats struct {
	TotalRequests        uint64
	FailureCount         uint64
	SuccessCount         uint64
	FailureRate          float64 // percentage, [0,100]
	AverageResponseTimeMs float64
}

// Window is a fixed-size bucket array covering windowSizeMs, each bucket
// sized windowSizeMs/bucketCount. A bucket is reset lazily the first time a
// sample lands in it after its contents have aged out of the window.
type Window struct {
	mu           sync.RWMutex
	buckets      []bucket
	bucketCount  int64
	bucketSizeMs int64
	windowSizeMs int64
}

// New constructs a Window. bucketCount must be in [2,100] and windowSizeMs
// must be >= 10_000, per the CircuitBreakerConfig invariants this window is
// built to serve; callers (the circuit breaker) are responsible for
// validating those bounds before construction.
func New(windowSizeMs int64, bucketCount int) *Window {
	return &Window{
		buckets:      make([]bucket, bucketCount),
		bucketCount:  int64(bucketCount),
		bucketSizeMs: windowSizeMs / int64(bucketCount),
		windowSizeMs: windowSizeMs,
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// AddSample records one request's outcome and latency.
func (w *Window) AddSample(success bool, responseTimeMs int64) {
	now := nowMs()
	slot := (now / w.bucketSizeMs) % w.bucketCount

	w.mu.Lock()
	b := &w.buckets[slot]
	if now-b.timestamp.Load() > w.windowSizeMs {
		b.resetTo(now)
	}
	b.totalRequests.Add(1)
	if !success {
		b.failureCount.Add(1)
	}
	b.totalResponseTimeMs.Add(uint64(responseTimeMs))
	w.mu.Unlock()
}

// Stats aggregates only buckets whose timestamp is within the last
// windowSizeMs; a bucket that has aged out contributes nothing even though
// its counters haven't been physically cleared yet.
func (w *Window) Stats() Stats {
	now := nowMs()

	var totalRequests, failureCount, totalResponseTime uint64

	w.mu.RLock()
	for i := range w.buckets {
		b := &w.buckets[i]
		ts := b.timestamp.Load()
		if ts == 0 || now-ts > w.windowSizeMs {
			continue
		}
		totalRequests += b.totalRequests.Load()
		failureCount += b.failureCount.Load()
		totalResponseTime += b.totalResponseTimeMs.Load()
	}
	w.mu.RUnlock()

	stats := Stats{
		TotalRequests: totalRequests,
		FailureCount:  failureCount,
		SuccessCount:  totalRequests - failureCount,
	}
	if totalRequests > 0 {
		stats.FailureRate = float64(failureCount) / float64(totalRequests) * 100
		stats.AverageResponseTimeMs = float64(totalResponseTime) / float64(totalRequests)
	}
	return stats
}

// Reset zeroes all buckets.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.buckets {
		w.buckets[i].resetTo(0)
	}
}
