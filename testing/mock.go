// Package bridgetest provides test utilities for bridge development:
// configurable collaborator mocks, a harness that drives a bridge
// server through its lifecycle, and a compliance suite every store
// backend must pass.
package bridgetest

import (
	"context"
	"sync"
	"sync/atomic"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Compile-time checks that the mocks satisfy the collaborator interfaces.
var (
	_ bridge.Bank        = (*MockBank)(nil)
	_ bridge.ReporterSet = (*MockReporters)(nil)
	_ bridge.Eligibility = (*MockEligibility)(nil)
	_ bridge.EventSink   = (*EventRecorder)(nil)
)

// Transfer is one transfer seen by MockBank.
type Transfer struct {
	To     types.Address
	Amount uint64
}

// MockBank records transfers. TransferFn, if set, runs first and its
// error fails the transfer; it may call back into the bridge.
type MockBank struct {
	mu        sync.Mutex
	transfers []Transfer

	TransferFn    func(ctx context.Context, to types.Address, amount uint64) error
	TransferCalls atomic.Int64
}

func (b *MockBank) Transfer(ctx context.Context, to types.Address, amount uint64) error {
	b.TransferCalls.Add(1)
	if b.TransferFn != nil {
		if err := b.TransferFn(ctx, to, amount); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transfers = append(b.transfers, Transfer{To: to, Amount: amount})
	return nil
}

// Transfers returns the successful transfers in order.
func (b *MockBank) Transfers() []Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transfer, len(b.transfers))
	copy(out, b.transfers)
	return out
}

// Paid returns the total successfully transferred to who.
func (b *MockBank) Paid(who types.Address) uint64 {
	var sum uint64
	for _, tr := range b.Transfers() {
		if tr.To == who {
			sum += tr.Amount
		}
	}
	return sum
}

// MockReporters is a mutable reporter set.
type MockReporters struct {
	mu      sync.RWMutex
	members map[types.Address]bool

	IsReporterFn func(ctx context.Context, who types.Address) (bool, error)
}

// NewMockReporters creates a reporter set with the given members.
func NewMockReporters(members ...types.Address) *MockReporters {
	r := &MockReporters{members: make(map[types.Address]bool)}
	for _, m := range members {
		r.members[m] = true
	}
	return r
}

// Add admits who to the set.
func (r *MockReporters) Add(who types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[who] = true
}

// Remove drops who from the set.
func (r *MockReporters) Remove(who types.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, who)
}

func (r *MockReporters) IsReporter(ctx context.Context, who types.Address) (bool, error) {
	if r.IsReporterFn != nil {
		return r.IsReporterFn(ctx, who)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[who], nil
}

// MockEligibility admits every claimant unless CheckFn says otherwise.
type MockEligibility struct {
	CheckFn func(ctx context.Context, claimant types.Address, proof types.EligibilityProof, epoch uint64) error
	Calls   atomic.Int64
}

func (e *MockEligibility) CheckEligibility(ctx context.Context, claimant types.Address, proof types.EligibilityProof, epoch uint64) error {
	e.Calls.Add(1)
	if e.CheckFn != nil {
		return e.CheckFn(ctx, claimant, proof, epoch)
	}
	return nil
}

// EventRecorder collects emitted events in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *EventRecorder) Emit(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *EventRecorder) Kinds() []string {
	evs := r.Events()
	kinds := make([]string, len(evs))
	for i, ev := range evs {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Reset discards the recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
