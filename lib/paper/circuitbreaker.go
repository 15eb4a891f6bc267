package paper

import (
	"sync"
	"time"
)

// CircuitBreaker is a three-state gate (closed / open / half-open on
// the first call after openUntil) shielding the upstream search client.
// All state transitions happen under a single mutex (§4.5, §5).
type CircuitBreaker struct {
	threshold   int
	openSeconds int

	mu           sync.Mutex
	failureCount int
	openUntil    time.Time
}

// NewCircuitBreaker builds a breaker that opens after threshold
// consecutive failures and stays open for at least openSeconds.
func NewCircuitBreaker(threshold, openSeconds int) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if openSeconds < 5 {
		openSeconds = 5
	}
	return &CircuitBreaker{threshold: threshold, openSeconds: openSeconds}
}

// Allow reports whether a request may proceed right now.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !time.Now().Before(c.openUntil)
}

// RecordSuccess resets the failure count and clears the open window.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount = 0
	c.openUntil = time.Time{}
}

// RecordFailure increments the failure count and, once it reaches the
// threshold, opens the circuit for openSeconds. The failure count is
// not reset on transitioning to Open; only a later success resets it.
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	if c.failureCount >= c.threshold {
		c.openUntil = time.Now().Add(time.Duration(c.openSeconds) * time.Second)
	}
}
