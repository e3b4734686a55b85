package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"leveldb": func(t *testing.T) Store {
			s, err := NewLevelDBStore(filepath.Join(t.TempDir(), "leveldb"))
			require.NoError(t, err)
			return s
		},
		"badgerdb": func(t *testing.T) Store {
			opts := DefaultBadgerDBOptions()
			opts.SyncWrites = false
			s, err := NewBadgerDBStoreWithOptions(filepath.Join(t.TempDir(), "badger"), opts)
			require.NoError(t, err)
			return s
		},
	}
}

func sample(n uint64) *types.Query {
	return &types.Query{
		ID: types.SequenceID(n),
		Request: types.Request{
			Requester: types.Address{1},
			Payload:   []byte("price of BTC/USD"),
			Digest:    types.HashBytes([]byte("price of BTC/USD")),
			GasPrice:  10,
			Reward:    100,
			PostedAt:  7,
		},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Empty", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Zero(t, n)

				_, err = s.Get(ctx, types.SequenceID(1))
				assert.ErrorIs(t, err, bridge.ErrNotFound)

				ok, err := s.Has(ctx, types.SequenceID(1))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("PutGet", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				q := sample(1)
				var b Batch
				b.Put(q)
				b.SetCount(1)
				require.NoError(t, s.Apply(ctx, &b))

				// Mutating the caller's record must not reach the store.
				q.Request.Reward = 0

				got, err := s.Get(ctx, q.ID)
				require.NoError(t, err)
				assert.Equal(t, uint64(100), got.Request.Reward)
				assert.Equal(t, []byte("price of BTC/USD"), got.Request.Payload)
				assert.Equal(t, types.StatusPosted, got.Status())

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, uint64(1), n)
			})

			t.Run("DeleteKeepsCount", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				var b Batch
				b.Put(sample(1))
				b.Put(sample(2))
				b.SetCount(2)
				require.NoError(t, s.Apply(ctx, &b))

				var d Batch
				d.Delete(types.SequenceID(1))
				require.NoError(t, s.Apply(ctx, &d))

				ok, err := s.Has(ctx, types.SequenceID(1))
				require.NoError(t, err)
				assert.False(t, ok)
				ok, err = s.Has(ctx, types.SequenceID(2))
				require.NoError(t, err)
				assert.True(t, ok)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, uint64(2), n)
			})

			t.Run("DeleteAfterPut", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				var b Batch
				b.Put(sample(1))
				b.Delete(types.SequenceID(1))
				require.NoError(t, s.Apply(ctx, &b))

				ok, err := s.Has(ctx, types.SequenceID(1))
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("ReportedRoundTrip", func(t *testing.T) {
				s := open(t)
				defer s.Close()

				q := sample(3)
				q.Claim = types.Claim{Claimant: types.Address{2}, Epoch: 4}
				q.InclusionHash = types.Hash{5}
				q.Response = types.Response{
					Reporter:  types.Address{2},
					Result:    []byte{0x1a, 0x2b},
					ProofRef:  types.Hash{6},
					Timestamp: 9,
					Paid:      100,
				}
				var b Batch
				b.Put(q)
				require.NoError(t, s.Apply(ctx, &b))

				got, err := s.Get(ctx, q.ID)
				require.NoError(t, err)
				assert.Equal(t, q, got)
				assert.Equal(t, types.StatusReported, got.Status())
			})

			t.Run("Closed", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Close())
				_, err := s.Count(ctx)
				assert.ErrorIs(t, err, ErrClosed)
				assert.ErrorIs(t, s.Apply(ctx, &Batch{}), ErrClosed)
			})
		})
	}
}

func TestLevelDBStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leveldb")

	s, err := NewLevelDBStore(path)
	require.NoError(t, err)
	var b Batch
	b.Put(sample(1))
	b.SetCount(1)
	require.NoError(t, s.Apply(ctx, &b))
	require.NoError(t, s.Close())

	s, err = NewLevelDBStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	got, err := s.Get(ctx, types.SequenceID(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.Request.Reward)
}

func TestBatchEmpty(t *testing.T) {
	var b Batch
	assert.True(t, b.Empty())
	b.SetCount(0)
	assert.False(t, b.Empty())
}

func TestOpen(t *testing.T) {
	s, err := Open(BackendMemory, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open("postgres", t.TempDir())
	assert.ErrorIs(t, err, bridge.ErrInvalidConfig)
}
