// Package registry provides a generic, thread-safe registry for values
// indexed by comparable keys.
//
// It backs the process-wide caches in procura: the provider factory cache
// and the per-dependency circuit breaker set. Both are "populate on first
// use, alive for the process lifetime" structures, so the registry favors
// read-heavy workloads (sync.RWMutex) and offers an atomic GetOrCreate.
package registry
