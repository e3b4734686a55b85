package lifecycle

import (
	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Precondition is a guard evaluated before an operation mutates
// anything. It returns a taxonomy error when the guard fails.
type Precondition func() error

// Check runs the preconditions in order and returns the first failure.
func Check(pres ...Precondition) error {
	for _, pre := range pres {
		if err := pre(); err != nil {
			return err
		}
	}
	return nil
}

// InStatus requires op to be allowed from status.
func (m *Machine) InStatus(op Op, id types.QueryID, status types.Status) Precondition {
	return func() error {
		return m.Require(op, id, status)
	}
}

// Claimable requires q to be free to claim at host height. A query
// whose claim is still live fails with a WrongStatusError.
func (m *Machine) Claimable(id types.QueryID, q *types.Query, height uint64) Precondition {
	return func() error {
		if err := m.Require(OpClaim, id, q.Status()); err != nil {
			return err
		}
		if !m.ClaimFree(q, height) {
			return bridge.NewWrongStatusError(id, types.StatusClaimed, types.StatusPosted)
		}
		return nil
	}
}

// RequesterIs requires sender to be the original requester of q.
func RequesterIs(q *types.Query, sender types.Address) Precondition {
	return func() error {
		if q.Request.Requester != sender {
			return errorsmod.Wrapf(bridge.ErrUnauthorized, "%s is not the requester of %s", sender, q.ID)
		}
		return nil
	}
}

// NonEmptyResult requires a result payload and a proof reference.
func NonEmptyResult(report types.ResultReport) Precondition {
	return func() error {
		if len(report.Result) == 0 {
			return errorsmod.Wrapf(bridge.ErrEmptyResult, "query %s: empty result", report.ID)
		}
		if report.ProofRef.IsZero() {
			return errorsmod.Wrapf(bridge.ErrEmptyResult, "query %s: zero proof reference", report.ID)
		}
		return nil
	}
}
