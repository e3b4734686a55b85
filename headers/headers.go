// Package headers keeps the merkle roots of external oracle-network
// blocks the bridge verifies proofs against.
package headers

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Roots are the two merkle roots recorded per external block.
type Roots struct {
	Requests types.Hash `cramberry:"1"`
	Tallies  types.Hash `cramberry:"2"`
}

// Memory is an in-memory header store.
type Memory struct {
	mu     sync.RWMutex
	blocks map[types.BlockRef]Roots
}

var _ bridge.HeaderStore = (*Memory)(nil)

// NewMemory creates an empty header store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[types.BlockRef]Roots)}
}

// Record stores the roots of block, replacing earlier ones.
func (m *Memory) Record(block types.BlockRef, requestsRoot, talliesRoot types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[block] = Roots{Requests: requestsRoot, Tallies: talliesRoot}
}

// Roots returns the roots recorded for block.
func (m *Memory) Roots(_ context.Context, block types.BlockRef) (Roots, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.blocks[block]
	if !ok {
		return Roots{}, errorsmod.Wrapf(bridge.ErrUnknownBlock, "block %s", block)
	}
	return r, nil
}

func (m *Memory) RequestsRoot(ctx context.Context, block types.BlockRef) (types.Hash, error) {
	r, err := m.Roots(ctx, block)
	return r.Requests, err
}

func (m *Memory) TalliesRoot(ctx context.Context, block types.BlockRef) (types.Hash, error) {
	r, err := m.Roots(ctx, block)
	return r.Tallies, err
}
