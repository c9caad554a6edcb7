// Package session persists conversation state across turns. The store
// owns TTL expiry; the pipeline only saves and loads.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/randalmurphal/procura/pkg/sourcing"
)

// ErrNotFound indicates an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// ErrStoreClosed indicates use after Close.
var ErrStoreClosed = errors.New("session store is closed")

// Store persists conversation state between turns.
type Store interface {
	Save(ctx context.Context, id string, state sourcing.State, ttl time.Duration) error
	Load(ctx context.Context, id string) (sourcing.State, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is an in-process Store for tests and the examples.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	closed   bool
}

type memorySession struct {
	state     sourcing.State
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memorySession)}
}

// Save implements Store. A non-positive ttl means no expiry.
func (m *MemoryStore) Save(_ context.Context, id string, state sourcing.State, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	entry := memorySession{state: state}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.sessions[id] = entry
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (sourcing.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return sourcing.State{}, ErrStoreClosed
	}

	entry, ok := m.sessions[id]
	if !ok || entry.expired() {
		return sourcing.State{}, ErrNotFound
	}
	return entry.state, nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStoreClosed
	}

	entry, ok := m.sessions[id]
	return ok && !entry.expired(), nil
}

// Delete implements Store. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, id)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = nil
	return nil
}

func (s memorySession) expired() bool {
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}
