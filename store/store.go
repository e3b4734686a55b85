// Package store provides query record persistence.
//
// A Store keeps one record per query id plus the number of queries ever
// posted. All mutation goes through Apply, which commits a Batch
// atomically: either every put, delete and counter update becomes
// visible or none does.
package store

import (
	"context"
	"encoding/binary"
	"errors"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// ErrClosed is returned by every call on a closed store.
var ErrClosed = errors.New("store closed")

// Store defines the interface for query record persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record stored under id.
	// Returns bridge.ErrNotFound if there is none.
	Get(ctx context.Context, id types.QueryID) (*types.Query, error)

	// Has reports whether a record exists under id.
	Has(ctx context.Context, id types.QueryID) (bool, error)

	// Count returns the number of queries ever posted. Deleting a
	// record does not decrement it.
	Count(ctx context.Context) (uint64, error)

	// Apply commits a batch atomically.
	Apply(ctx context.Context, b *Batch) error

	// Close closes the store and releases resources.
	Close() error
}

// Batch is a set of mutations committed together by Apply. Deletes are
// applied after puts. A zero Batch is valid and empty.
type Batch struct {
	puts     []*types.Query
	deletes  []types.QueryID
	count    uint64
	setCount bool
}

// Put stages a write of q. The record is cloned so later changes to q
// do not leak into the batch.
func (b *Batch) Put(q *types.Query) {
	b.puts = append(b.puts, q.Clone())
}

// Delete stages removal of the record under id.
func (b *Batch) Delete(id types.QueryID) {
	b.deletes = append(b.deletes, id)
}

// SetCount stages a new value for the posted-query counter.
func (b *Batch) SetCount(n uint64) {
	b.count = n
	b.setCount = true
}

// Empty reports whether the batch has nothing to commit.
func (b *Batch) Empty() bool {
	return len(b.puts) == 0 && len(b.deletes) == 0 && !b.setCount
}

// Key prefixes shared by the on-disk backends.
var (
	prefixQuery  = []byte("Q:") // Q:<id> -> cramberry(Query)
	keyMetaCount = []byte("M:count")
)

func makeQueryKey(id types.QueryID) []byte {
	key := make([]byte, len(prefixQuery)+types.HashSize)
	copy(key, prefixQuery)
	copy(key[len(prefixQuery):], id[:])
	return key
}

func encodeUint64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendBadgerDB = "badgerdb"
)

// Open creates the store named by backend. Disk backends keep their
// files under dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendLevelDB:
		return NewLevelDBStore(dir)
	case BackendBadgerDB:
		return NewBadgerDBStore(dir)
	default:
		return nil, errorsmod.Wrapf(bridge.ErrInvalidConfig, "unknown store backend %q", backend)
	}
}
