package store

import (
	"context"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// LevelDBStore implements Store using LevelDB.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
	mu   sync.RWMutex
}

// NewLevelDBStore opens (or creates) a LevelDB-backed store at path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}
	return &LevelDBStore{db: db, path: path}, nil
}

// Get returns the record stored under id.
func (s *LevelDBStore) Get(_ context.Context, id types.QueryID) (*types.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	data, err := s.db.Get(makeQueryKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, errorsmod.Wrapf(bridge.ErrNotFound, "query %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting query %s: %w", id, err)
	}

	var q types.Query
	if err := cramberry.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decoding query %s: %w", id, err)
	}
	return &q, nil
}

// Has reports whether a record exists under id.
func (s *LevelDBStore) Has(_ context.Context, id types.QueryID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return false, ErrClosed
	}
	return s.db.Has(makeQueryKey(id), nil)
}

// Count returns the number of queries ever posted.
func (s *LevelDBStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	data, err := s.db.Get(keyMetaCount, nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting query count: %w", err)
	}
	return decodeUint64(data), nil
}

// Apply writes b as a single LevelDB batch.
func (s *LevelDBStore) Apply(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	batch := new(leveldb.Batch)
	for _, q := range b.puts {
		data, err := cramberry.Marshal(q)
		if err != nil {
			return fmt.Errorf("encoding query %s: %w", q.ID, err)
		}
		batch.Put(makeQueryKey(q.ID), data)
	}
	for _, id := range b.deletes {
		batch.Delete(makeQueryKey(id))
	}
	if b.setCount {
		batch.Put(keyMetaCount, encodeUint64(b.count))
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
