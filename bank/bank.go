// Package bank provides an in-memory value ledger that the bridge pays
// rewards out of.
package bank

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Transfer is one completed payout.
type Transfer struct {
	To     types.Address
	Amount uint64
}

// Memory credits transfers to in-memory balances and keeps a log of
// them. The bridge's own custody is not modelled.
type Memory struct {
	mu       sync.Mutex
	balances map[types.Address]sdkmath.Uint
	log      []Transfer
}

var _ bridge.Bank = (*Memory)(nil)

// NewMemory creates an empty bank.
func NewMemory() *Memory {
	return &Memory{balances: make(map[types.Address]sdkmath.Uint)}
}

// Transfer credits amount to the recipient.
func (m *Memory) Transfer(ctx context.Context, to types.Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("transfer of %d to zero address", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[to]
	if !ok {
		bal = sdkmath.ZeroUint()
	}
	m.balances[to] = bal.AddUint64(amount)
	m.log = append(m.log, Transfer{To: to, Amount: amount})
	return nil
}

// Balance returns the total credited to who.
func (m *Memory) Balance(who types.Address) sdkmath.Uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[who]
	if !ok {
		return sdkmath.ZeroUint()
	}
	return bal
}

// Transfers returns a copy of the transfer log.
func (m *Memory) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transfer, len(m.log))
	copy(out, m.log)
	return out
}
