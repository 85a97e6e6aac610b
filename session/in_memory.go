package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/ordermesh/core"
)

// InMemoryStore is a volatile SessionStore storing snapshots in a process
// local map. It is safe for concurrent access and best suited for tests or
// single-instance servers. Stored and returned snapshots are copies, so
// callers can never mutate the store's state.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*core.SessionSnapshot
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]*core.SessionSnapshot)}
}

// Load returns a copy of the stored snapshot or core.ErrSessionNotFound.
func (s *InMemoryStore) Load(_ context.Context, id string) (*core.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return copySnapshot(snap), nil
}

// Save stores a copy of snap. A snapshot older than the stored one is
// rejected with core.ErrVersionConflict.
func (s *InMemoryStore) Save(_ context.Context, snap *core.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.snapshots[snap.ID]; ok && cur.Version > snap.Version {
		return fmt.Errorf("%w: session %s stored v%d, got v%d", core.ErrVersionConflict, snap.ID, cur.Version, snap.Version)
	}
	s.snapshots[snap.ID] = copySnapshot(snap)
	return nil
}

// Delete removes a snapshot; unknown ids are ignored.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func copySnapshot(snap *core.SessionSnapshot) *core.SessionSnapshot {
	out := *snap
	out.History = snap.History.Tail(0)
	out.Memory = snap.Memory.Clone()
	return &out
}
