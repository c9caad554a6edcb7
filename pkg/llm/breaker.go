package llm

import (
	"sync"
	"time"

	"github.com/randalmurphal/procura/pkg/registry"
)

// Breaker states.
const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// CircuitBreaker tracks consecutive failures against one backend and
// short-circuits calls while the backend is misbehaving.
//
// Closed: calls flow normally. After the failure threshold is hit the
// breaker opens and calls are refused without touching the backend.
// After the open timeout one trial call is allowed (half-open); success
// closes the breaker, failure reopens it.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            string
	failures         int
	lastFailure      time.Time
	failureThreshold int
	openTimeout      time.Duration
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments
// fall back to the defaults (5 failures, 30s open timeout).
func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	return &CircuitBreaker{
		state:            breakerClosed,
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
	}
}

// CanExecute reports whether a call may proceed. An open breaker whose
// timeout has elapsed transitions to half-open and admits one trial.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailure) >= cb.openTimeout {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets the breaker to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
}

// RecordFailure counts a failure. Reaching the threshold, or failing the
// half-open trial, opens the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == breakerHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = breakerOpen
	}
}

// State returns the breaker state name: closed, open, or half_open.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// breakers holds one breaker per backend, created lazily.
var breakers = registry.New[string, *CircuitBreaker]()

// BreakerFor returns the process-wide breaker for a backend.
func BreakerFor(provider string) *CircuitBreaker {
	return breakers.GetOrCreate(provider, func() *CircuitBreaker {
		return NewCircuitBreaker(defaultFailureThreshold, defaultOpenTimeout)
	})
}

// ResetBreakers discards all breaker state. Intended for tests.
func ResetBreakers() {
	breakers.Clear()
}
