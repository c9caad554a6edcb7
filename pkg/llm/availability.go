package llm

import "sync"

// availability memoizes the result of a backend probe.
// The probe runs at most once until reset.
type availability struct {
	mu     sync.Mutex
	probed bool
	ok     bool
}

// memoize returns the cached probe result, running probe on first call.
func (a *availability) memoize(probe func() bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.probed {
		a.ok = probe()
		a.probed = true
	}
	return a.ok
}

// reset clears the cached result so the next call probes again.
func (a *availability) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probed = false
	a.ok = false
}
