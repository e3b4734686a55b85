package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/blockberries/cramberry/pkg/cramberry"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// BadgerDBStore implements Store using BadgerDB.
type BadgerDBStore struct {
	db   *badger.DB
	path string
	mu   sync.RWMutex
}

// BadgerDBOptions contains configuration options for BadgerDB.
type BadgerDBOptions struct {
	// SyncWrites ensures durability by syncing writes to disk.
	// Default: true
	SyncWrites bool

	// Compression enables Snappy compression for values.
	// Default: true
	Compression bool

	// InMemory keeps all data in memory. Path is ignored.
	InMemory bool

	// Logger is an optional logger for BadgerDB.
	// If nil, logging is disabled.
	Logger badger.Logger
}

// DefaultBadgerDBOptions returns sensible default options.
func DefaultBadgerDBOptions() *BadgerDBOptions {
	return &BadgerDBOptions{
		SyncWrites:  true,
		Compression: true,
	}
}

// NewBadgerDBStore opens a BadgerDB-backed store at path with default
// options.
func NewBadgerDBStore(path string) (*BadgerDBStore, error) {
	return NewBadgerDBStoreWithOptions(path, DefaultBadgerDBOptions())
}

// NewBadgerDBStoreWithOptions opens a BadgerDB-backed store with custom
// options.
func NewBadgerDBStoreWithOptions(path string, opts *BadgerDBOptions) (*BadgerDBStore, error) {
	if opts == nil {
		opts = DefaultBadgerDBOptions()
	}

	badgerOpts := badger.DefaultOptions(path)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites && !opts.InMemory)
	if opts.Compression {
		badgerOpts = badgerOpts.WithCompression(options.Snappy)
	} else {
		badgerOpts = badgerOpts.WithCompression(options.None)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}
	return &BadgerDBStore{db: db, path: path}, nil
}

// Get returns the record stored under id.
func (s *BadgerDBStore) Get(_ context.Context, id types.QueryID) (*types.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	var q types.Query
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeQueryKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cramberry.Unmarshal(val, &q)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errorsmod.Wrapf(bridge.ErrNotFound, "query %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting query %s: %w", id, err)
	}
	return &q, nil
}

// Has reports whether a record exists under id.
func (s *BadgerDBStore) Has(_ context.Context, id types.QueryID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return false, ErrClosed
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeQueryKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of queries ever posted.
func (s *BadgerDBStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	var n uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMetaCount)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n = decodeUint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("getting query count: %w", err)
	}
	return n, nil
}

// Apply commits b in a single read-write transaction.
func (s *BadgerDBStore) Apply(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, q := range b.puts {
			data, err := cramberry.Marshal(q)
			if err != nil {
				return fmt.Errorf("encoding query %s: %w", q.ID, err)
			}
			if err := txn.Set(makeQueryKey(q.ID), data); err != nil {
				return err
			}
		}
		for _, id := range b.deletes {
			if err := txn.Delete(makeQueryKey(id)); err != nil {
				return err
			}
		}
		if b.setCount {
			return txn.Set(keyMetaCount, encodeUint64(b.count))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
