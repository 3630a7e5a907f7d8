package store

import (
	"sync/atomic"
)

// Manager holds the currently active store behind an atomic pointer.
// This is the single shared mutable resource: a rebuilding writer swaps
// in a new store while readers proceed against the one they grabbed,
// with no mutual blocking and no reader observing a half-built state.
type Manager struct {
	active atomic.Pointer[Store]
}

// NewManager creates a Manager with an optional initial store.
func NewManager(initial *Store) *Manager {
	m := &Manager{}
	if initial != nil {
		m.active.Store(initial)
	}
	return m
}

// Active returns the current store handle, or nil when none is published.
// Callers keep using the returned handle for the whole operation; a
// concurrent swap does not affect it.
func (m *Manager) Active() *Store {
	return m.active.Load()
}

// Swap publishes a freshly built store and returns the previous one.
// The caller decides when the previous store is safe to close; in-flight
// readers hold their own handle and are not interrupted.
func (m *Manager) Swap(next *Store) *Store {
	return m.active.Swap(next)
}
