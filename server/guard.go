// Package server provides the bridge facade: it enforces the query
// lifecycle, commits every transition atomically and performs value
// transfers only after the new state is visible.
package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/blockberries/bridgeberry/types"
)

// ErrClosed is returned by operations on a closed server.
var ErrClosed = errors.New("bridge server closed")

// guardState represents the serving state of a Guard.
type guardState uint32

const (
	// stateServing: operations are admitted.
	stateServing guardState = iota
	// stateClosed: Close has been called. No new operations are admitted.
	stateClosed
)

func (s guardState) String() string {
	switch s {
	case stateServing:
		return "Serving"
	case stateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// keyLock is the exclusive lock of one query id. refs counts holders
// and waiters so the entry can be dropped once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Guard gives each query id exclusive access for the duration of one
// operation. Different ids proceed in parallel. Multi-id operations
// take their locks in sorted order, so two batches never deadlock.
type Guard struct {
	state atomic.Uint32
	// Serializes identifier allocation (the posted-query counter).
	seqMu sync.Mutex

	mu    sync.Mutex
	locks map[types.QueryID]*keyLock
	// Ids whose payout has not settled yet.
	settling map[types.QueryID]struct{}
}

// NewGuard creates a guard in the Serving state.
func NewGuard() *Guard {
	g := &Guard{
		locks:    make(map[types.QueryID]*keyLock),
		settling: make(map[types.QueryID]struct{}),
	}
	g.state.Store(uint32(stateServing))
	return g
}

// State returns the current serving state.
func (g *Guard) State() string {
	return guardState(g.state.Load()).String()
}

// CheckServing returns ErrClosed once the guard has been closed.
func (g *Guard) CheckServing() error {
	if guardState(g.state.Load()) != stateServing {
		return ErrClosed
	}
	return nil
}

// Close transitions Serving -> Closed. It reports false if the guard
// was already closed. Operations in flight run to completion.
func (g *Guard) Close() bool {
	return g.state.CompareAndSwap(uint32(stateServing), uint32(stateClosed))
}

// Acquire locks every id, in sorted order, and returns the function
// that releases them. Duplicate ids are locked once.
func (g *Guard) Acquire(ids ...types.QueryID) (release func()) {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b types.QueryID) int {
		return slices.Compare(a[:], b[:])
	})
	sorted = slices.Compact(sorted)

	held := make([]*keyLock, len(sorted))
	for i, id := range sorted {
		g.mu.Lock()
		l, ok := g.locks[id]
		if !ok {
			l = &keyLock{}
			g.locks[id] = l
		}
		l.refs++
		g.mu.Unlock()

		l.mu.Lock()
		held[i] = l
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(sorted) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				g.mu.Lock()
				held[i].refs--
				if held[i].refs == 0 {
					delete(g.locks, sorted[i])
				}
				g.mu.Unlock()
			}
		})
	}
}

// MarkSettling flags id as having a payout in flight until the returned
// function is called. It must be called while id is held.
func (g *Guard) MarkSettling(id types.QueryID) (done func()) {
	g.mu.Lock()
	g.settling[id] = struct{}{}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.settling, id)
			g.mu.Unlock()
		})
	}
}

// Settling reports whether a payout on id is in flight.
func (g *Guard) Settling(id types.QueryID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.settling[id]
	return ok
}

// AcquireSequence serializes allocation of the next query id.
func (g *Guard) AcquireSequence() (release func()) {
	g.seqMu.Lock()
	return g.seqMu.Unlock
}

// Held returns the number of ids currently locked or waited on.
func (g *Guard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
