package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	assert.Equal(t, breakerClosed, cb.State())
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, breakerClosed, cb.State())
	assert.True(t, cb.CanExecute())

	cb.RecordFailure()
	assert.Equal(t, breakerOpen, cb.State())
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.RecordFailure()
	require.Equal(t, breakerOpen, cb.State())

	// Backdate the failure past the open timeout.
	cb.mu.Lock()
	cb.lastFailure = time.Now().Add(-2 * time.Minute)
	cb.mu.Unlock()

	assert.True(t, cb.CanExecute())
	assert.Equal(t, breakerHalfOpen, cb.State())
}

func TestCircuitBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.RecordFailure()
	cb.mu.Lock()
	cb.lastFailure = time.Now().Add(-2 * time.Minute)
	cb.mu.Unlock()
	require.True(t, cb.CanExecute())

	cb.RecordSuccess()
	assert.Equal(t, breakerClosed, cb.State())
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)
	cb.RecordFailure()
	cb.mu.Lock()
	cb.state = breakerHalfOpen
	cb.mu.Unlock()

	// One failure in half-open reopens regardless of the threshold.
	cb.RecordFailure()
	assert.Equal(t, breakerOpen, cb.State())
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(0, 0)
	assert.Equal(t, defaultFailureThreshold, cb.failureThreshold)
	assert.Equal(t, defaultOpenTimeout, cb.openTimeout)
}

func TestBreakerForSharesInstances(t *testing.T) {
	ResetBreakers()
	t.Cleanup(ResetBreakers)

	a := BreakerFor("openai")
	b := BreakerFor("openai")
	c := BreakerFor("ollama")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
