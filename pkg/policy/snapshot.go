package policy

import (
	"sync"
	"sync/atomic"

	"github.com/dive-federation/pdp/pkg/bundle"
)

// SnapshotStore holds the active rule bundle behind an atomic pointer.
// Readers always see a complete bundle; a swap is a single pointer store.
type SnapshotStore struct {
	active atomic.Pointer[bundle.Bundle]

	mu        sync.Mutex
	listeners []func(*bundle.Bundle)
}

// NewSnapshotStore creates an empty store. Active returns nil until the first
// Activate, and the engine denies all requests in that window.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Activate swaps in a verified bundle and notifies listeners. Implements the
// syncer's activation hook; callers must only pass verified bundles.
func (s *SnapshotStore) Activate(b *bundle.Bundle) {
	s.active.Store(b)

	s.mu.Lock()
	listeners := make([]func(*bundle.Bundle), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(b)
	}
}

// Active returns the current bundle snapshot, nil before the first activation.
func (s *SnapshotStore) Active() *bundle.Bundle {
	return s.active.Load()
}

// ActiveVersion returns the active bundle version, empty before activation.
func (s *SnapshotStore) ActiveVersion() string {
	if b := s.active.Load(); b != nil {
		return b.Version
	}
	return ""
}

// OnActivate registers a callback invoked after every swap. The decision
// cache uses this to purge entries keyed on the previous version.
func (s *SnapshotStore) OnActivate(fn func(*bundle.Bundle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
