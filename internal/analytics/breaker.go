package analytics

import (
	"sync"
	"time"
)

// circuitBreaker stops publishing attempts while the broker is failing.
// After threshold consecutive failures it opens for cooldown, then lets
// traffic through again.
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a publish should be attempted.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.openUntil.IsZero() {
		return true
	}
	if cb.now().After(cb.openUntil) {
		// Half-open: allow traffic and start counting again.
		cb.openUntil = time.Time{}
		cb.failures = 0
		return true
	}
	return false
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
}

// RecordFailure returns true when this failure opened the circuit.
func (cb *circuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold && cb.openUntil.IsZero() {
		cb.openUntil = cb.now().Add(cb.cooldown)
		return true
	}
	return false
}
