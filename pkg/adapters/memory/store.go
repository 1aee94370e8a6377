// Package memory provides an in-memory SnapshotStore, suitable for tests
// and single-process hosts.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/traverse/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.Snapshot
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.Snapshot)}
}

// Save persists the snapshot in memory. The snapshot is copied so later
// mutations by the caller cannot leak into the store.
func (s *Store) Save(ctx context.Context, id string, snap *domain.Snapshot) error {
	copied := &domain.Snapshot{
		Entries:      slices.Clone(snap.Entries),
		CurrentIndex: snap.CurrentIndex,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copied
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}

	// Copy on read so the caller cannot mutate stored state by pointer.
	return &domain.Snapshot{
		Entries:      slices.Clone(snap.Entries),
		CurrentIndex: snap.CurrentIndex,
	}, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored snapshot IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
