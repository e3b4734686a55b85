// Package lifecycle holds the query state machine: which operation may
// run from which status, in which variant, and what status it leads to.
//
// The machine never touches storage. Operations call Check with the
// preconditions they need before staging any mutation, so a rejected
// call has nothing to undo.
package lifecycle

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Op names a state-changing operation of the bridge.
type Op uint8

const (
	OpPost Op = iota
	OpUpgradeReward
	OpClaim
	OpReportInclusion
	OpReportResult
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpPost:
		return "post"
	case OpUpgradeReward:
		return "upgrade_reward"
	case OpClaim:
		return "claim"
	case OpReportInclusion:
		return "report_inclusion"
	case OpReportResult:
		return "report_result"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Ops lists every operation in declaration order.
var Ops = []Op{OpPost, OpUpgradeReward, OpClaim, OpReportInclusion, OpReportResult, OpDelete}

// Transition is one edge set of the machine: the statuses an operation
// may start from and the status it leaves the query in.
type Transition struct {
	From []types.Status
	To   types.Status
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s types.Status) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

var directTable = map[Op]Transition{
	OpPost:          {From: []types.Status{types.StatusUnknown}, To: types.StatusPosted},
	OpUpgradeReward: {From: []types.Status{types.StatusPosted}, To: types.StatusPosted},
	OpReportResult:  {From: []types.Status{types.StatusPosted}, To: types.StatusReported},
	OpDelete:        {From: []types.Status{types.StatusReported}, To: types.StatusRemoved},
}

var claimTable = map[Op]Transition{
	OpPost: {From: []types.Status{types.StatusUnknown}, To: types.StatusPosted},
	// Upgrades keep whatever unresolved status the query is in.
	OpUpgradeReward:   {From: []types.Status{types.StatusPosted, types.StatusClaimed, types.StatusIncluded}},
	OpClaim:           {From: []types.Status{types.StatusPosted, types.StatusClaimed}, To: types.StatusClaimed},
	OpReportInclusion: {From: []types.Status{types.StatusClaimed}, To: types.StatusIncluded},
	OpReportResult:    {From: []types.Status{types.StatusIncluded}, To: types.StatusReported},
	OpDelete:          {From: []types.Status{types.StatusReported}, To: types.StatusRemoved},
}

// DefaultClaimExpiry is the number of host blocks a claim stays
// exclusive without an inclusion proof.
const DefaultClaimExpiry = 13

// Machine is the transition table of one variant.
type Machine struct {
	variant     types.Variant
	claimExpiry uint64
}

// New creates the machine for variant. A zero claimExpiry selects
// DefaultClaimExpiry.
func New(variant types.Variant, claimExpiry uint64) *Machine {
	if claimExpiry == 0 {
		claimExpiry = DefaultClaimExpiry
	}
	return &Machine{variant: variant, claimExpiry: claimExpiry}
}

// Variant returns the variant the machine enforces.
func (m *Machine) Variant() types.Variant { return m.variant }

// ClaimExpiry returns the claim window length in host blocks.
func (m *Machine) ClaimExpiry() uint64 { return m.claimExpiry }

// Transition returns the edge set of op and whether the variant
// supports op at all.
func (m *Machine) Transition(op Op) (Transition, bool) {
	table := directTable
	if m.variant.HasClaims() {
		table = claimTable
	}
	t, ok := table[op]
	return t, ok
}

// Supports reports whether op exists in the machine's variant.
func (m *Machine) Supports(op Op) bool {
	_, ok := m.Transition(op)
	return ok
}

// Require checks that op may run against a query in status actual.
//
// An Unknown query fails every operation except Post with
// ErrNotFound. Any other mismatch is a *bridge.WrongStatusError
// naming the statuses op accepts.
func (m *Machine) Require(op Op, id types.QueryID, actual types.Status) error {
	t, ok := m.Transition(op)
	if !ok {
		return errorsmod.Wrapf(bridge.ErrUnsupported, "%s in %s variant", op, m.variant)
	}
	if t.Allows(actual) {
		return nil
	}
	if actual == types.StatusUnknown {
		return errorsmod.Wrapf(bridge.ErrNotFound, "query %s", id)
	}
	return bridge.NewWrongStatusError(id, actual, t.From...)
}

// Next returns the status op leaves a query in when it started from
// the given status.
func (m *Machine) Next(op Op, from types.Status) types.Status {
	t, _ := m.Transition(op)
	if op == OpUpgradeReward {
		return from
	}
	return t.To
}

// ClaimFree reports whether q may be claimed at host height: it is not
// claimed, or its claim is at least ClaimExpiry blocks old.
func (m *Machine) ClaimFree(q *types.Query, height uint64) bool {
	if q.Status() != types.StatusClaimed {
		return true
	}
	return height >= q.Claim.Epoch && height-q.Claim.Epoch >= m.claimExpiry
}
