// Package payload holds request payloads that queries reference instead
// of copying inline.
//
// Payloads live in a go-datastore under their reference and may be
// replaced at any time. The bridge records the payload digest when a
// query is posted and compares it on every read, so a replacement is
// detected rather than silently served.
package payload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	leveldb "github.com/ipfs/go-ds-leveldb"
	mh "github.com/multiformats/go-multihash"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

var keyPrefix = datastore.NewKey("/payload")

// Store is a payload store backed by a go-datastore.
type Store struct {
	ds datastore.Datastore
}

var _ bridge.PayloadStore = (*Store)(nil)

// NewStore wraps an existing datastore. The datastore must be safe for
// concurrent use.
func NewStore(d datastore.Datastore) *Store {
	return &Store{ds: d}
}

// NewMemoryStore creates an in-memory payload store.
func NewMemoryStore() *Store {
	return NewStore(dssync.MutexWrap(datastore.NewMapDatastore()))
}

// NewLevelDBStore opens a LevelDB-backed payload store at path.
func NewLevelDBStore(path string) (*Store, error) {
	d, err := leveldb.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening payload leveldb: %w", err)
	}
	return NewStore(d), nil
}

// Open creates the payload store named by backend ("memory" or
// "leveldb").
func Open(backend, path string) (*Store, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "leveldb":
		return NewLevelDBStore(path)
	default:
		return nil, errorsmod.Wrapf(bridge.ErrInvalidConfig, "unknown payload backend %q", backend)
	}
}

// refKey maps ref to its datastore key. A reference is a single key
// segment: empty refs and refs that could escape the payload namespace
// are rejected.
func refKey(ref types.PayloadRef) (datastore.Key, error) {
	r := string(ref)
	switch {
	case r == "":
		return datastore.Key{}, errorsmod.Wrap(bridge.ErrEmptyPayload, "empty payload reference")
	case r == ".", strings.ContainsRune(r, '/'), strings.Contains(r, ".."):
		return datastore.Key{}, errorsmod.Wrapf(bridge.ErrEmptyPayload, "invalid payload reference %q", r)
	}
	return keyPrefix.ChildString(r), nil
}

// Put stores data under ref, replacing whatever was there.
func (s *Store) Put(ctx context.Context, ref types.PayloadRef, data []byte) error {
	key, err := refKey(ref)
	if err != nil {
		return err
	}
	if err := s.ds.Put(ctx, key, data); err != nil {
		return fmt.Errorf("storing payload %s: %w", ref, err)
	}
	return nil
}

// Add stores data under its content identifier and returns the
// identifier as the reference.
func (s *Store) Add(ctx context.Context, data []byte) (types.PayloadRef, error) {
	ref := types.PayloadRef(CID(Digest(data)).String())
	if err := s.Put(ctx, ref, data); err != nil {
		return "", err
	}
	return ref, nil
}

// Fetch returns the current bytes stored under ref.
func (s *Store) Fetch(ctx context.Context, ref types.PayloadRef) ([]byte, error) {
	key, err := refKey(ref)
	if err != nil {
		return nil, err
	}
	data, err := s.ds.Get(ctx, key)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, errorsmod.Wrapf(bridge.ErrEmptyPayload, "no payload under %q", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching payload %s: %w", ref, err)
	}
	return data, nil
}

// Remove deletes the payload under ref.
func (s *Store) Remove(ctx context.Context, ref types.PayloadRef) error {
	key, err := refKey(ref)
	if err != nil {
		return err
	}
	return s.ds.Delete(ctx, key)
}

// Close releases the underlying datastore.
func (s *Store) Close() error {
	return s.ds.Close()
}

// Digest returns the SHA2-256 digest of data.
func Digest(data []byte) types.Hash {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		panic(fmt.Sprintf("payload: sha2-256 multihash: %v", err))
	}
	dec, err := mh.Decode(sum)
	if err != nil {
		panic(fmt.Sprintf("payload: decode multihash: %v", err))
	}
	var h types.Hash
	copy(h[:], dec.Digest)
	return h
}

// CID returns the CIDv1 (raw codec) naming content with the given
// SHA2-256 digest.
func CID(digest types.Hash) cid.Cid {
	m, err := mh.Encode(digest[:], mh.SHA2_256)
	if err != nil {
		panic(fmt.Sprintf("payload: encode multihash: %v", err))
	}
	return cid.NewCidV1(cid.Raw, m)
}

// Verify checks data against the digest recorded at post time.
func Verify(id types.QueryID, digest types.Hash, data []byte) error {
	if got := Digest(data); got != digest {
		return errorsmod.Wrapf(bridge.ErrTamperedRequest, "query %s: payload digest %s, recorded %s", id, got, digest)
	}
	return nil
}
