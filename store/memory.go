package store

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// MemoryStore is an in-memory Store, used by tests and ephemeral nodes.
type MemoryStore struct {
	mu      sync.RWMutex
	queries map[types.QueryID]*types.Query
	count   uint64
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queries: make(map[types.QueryID]*types.Query)}
}

// Get returns a copy of the record stored under id.
func (s *MemoryStore) Get(_ context.Context, id types.QueryID) (*types.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	q, ok := s.queries[id]
	if !ok {
		return nil, errorsmod.Wrapf(bridge.ErrNotFound, "query %s", id)
	}
	return q.Clone(), nil
}

// Has reports whether a record exists under id.
func (s *MemoryStore) Has(_ context.Context, id types.QueryID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.queries[id]
	return ok, nil
}

// Count returns the number of queries ever posted.
func (s *MemoryStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.count, nil
}

// Apply commits b under the store lock.
func (s *MemoryStore) Apply(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, q := range b.puts {
		s.queries[q.ID] = q.Clone()
	}
	for _, id := range b.deletes {
		delete(s.queries, id)
	}
	if b.setCount {
		s.count = b.count
	}
	return nil
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
