package server

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/escrow"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/types"
)

// settle executes a payout after its record has been committed and the
// id unlocked. If the transfer fails the committed record is restored
// to before, provided nothing has changed it since.
func (s *Server) settle(ctx context.Context, op lifecycle.Op, before, after *types.Query, p escrow.Payout) error {
	if p.Amount == 0 {
		return nil
	}
	err := s.bank.Transfer(ctx, p.To, p.Amount)
	if err == nil {
		s.metrics.AddPayout(p.Leg.String(), p.Amount)
		return nil
	}

	s.log.Error("transfer failed",
		logging.Op(op.String()),
		logging.QueryID(p.ID),
		logging.Address("to", p.To),
		logging.Amount(p.Amount),
		logging.Error(err),
	)
	s.restore(context.WithoutCancel(ctx), op, before, after)
	return errorsmod.Wrapf(bridge.ErrTransferFailed, "%s reward of %s to %s: %v", p.Leg, p.ID, p.To, err)
}

func (s *Server) restore(ctx context.Context, op lifecycle.Op, before, after *types.Query) {
	release := s.guard.Acquire(after.ID)
	defer release()

	cur, err := s.store.Get(ctx, after.ID)
	if err != nil || !sameState(cur, after) {
		s.log.Error("rollback skipped: record changed after commit", logging.Op(op.String()), logging.QueryID(after.ID), logging.Error(err))
		return
	}
	if err := s.put(ctx, before); err != nil {
		s.log.Error("rollback failed", logging.Op(op.String()), logging.QueryID(after.ID), logging.Error(err))
		return
	}
	s.metrics.IncRollback(op.String())
}

// sameState compares the fields operations change.
func sameState(a, b *types.Query) bool {
	return a.Status() == b.Status() &&
		a.Claim == b.Claim &&
		a.InclusionHash == b.InclusionHash &&
		a.Response.ProofRef == b.Response.ProofRef &&
		a.Response.Reporter == b.Response.Reporter &&
		a.Request.Reward == b.Request.Reward &&
		a.Request.InclusionReward == b.Request.InclusionReward &&
		a.Request.GasPrice == b.Request.GasPrice
}
