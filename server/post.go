package server

import (
	"context"
	stdmath "math"

	errorsmod "cosmossdk.io/errors"
	"go.opentelemetry.io/otel/attribute"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/payload"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// Post creates a query escrowing the value attached to tx.
func (s *Server) Post(ctx context.Context, tx types.TxContext, req types.PostRequest) (id types.QueryID, err error) {
	ctx, done := s.begin(ctx, lifecycle.OpPost, attribute.String("sender", tx.Sender.String()))
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return types.QueryID{}, err
	}
	if tx.Sender.IsZero() {
		return types.QueryID{}, errorsmod.Wrap(bridge.ErrUnauthorized, "zero sender")
	}
	data, err := s.postedPayload(ctx, req)
	if err != nil {
		return types.QueryID{}, err
	}

	q := &types.Query{Request: types.Request{
		Requester: tx.Sender,
		Ref:       req.Ref,
		Digest:    payload.Digest(data),
		PostedAt:  tx.Height,
	}}
	if req.Ref == "" {
		q.Request.Payload = append([]byte(nil), data...)
	}
	if err := s.ledger.Open(q, tx, s.params.Variant, req.ResultReward); err != nil {
		return types.QueryID{}, err
	}

	if s.params.Variant.ContentAddressed() {
		id = types.ContentID(data)
		release, err := s.lock(id)
		if err != nil {
			return types.QueryID{}, err
		}
		defer release()
		_, status, err := s.load(ctx, id)
		if err != nil {
			return types.QueryID{}, err
		}
		if err := lifecycle.Check(s.machine.InStatus(lifecycle.OpPost, id, status)); err != nil {
			return types.QueryID{}, err
		}
	}

	releaseSeq := s.guard.AcquireSequence()
	defer releaseSeq()
	count, err := s.store.Count(ctx)
	if err != nil {
		return types.QueryID{}, err
	}
	if count == stdmath.MaxUint64 {
		return types.QueryID{}, errorsmod.Wrap(bridge.ErrOverflow, "query counter")
	}
	if !s.params.Variant.ContentAddressed() {
		id = types.SequenceID(count + 1)
	}
	q.ID = id

	var b store.Batch
	b.Put(q)
	b.SetCount(count + 1)
	if err := s.store.Apply(ctx, &b); err != nil {
		return types.QueryID{}, err
	}
	s.metrics.SetQueryCount(count + 1)

	s.log.Debug("query posted", logging.QueryID(id), logging.Address("requester", tx.Sender), logging.Amount(q.Balance()))
	s.emit(types.NewQueryEvent(types.EventQueryPosted, tx.Sender, id,
		types.Attr("reward", q.Request.Reward),
		types.Attr("inclusion_reward", q.Request.InclusionReward),
		types.Attr("gas_price", q.Request.GasPrice),
	))
	return id, nil
}

// UpgradeReward adds the value attached to tx to an unresolved query's
// result reward.
func (s *Server) UpgradeReward(ctx context.Context, tx types.TxContext, id types.QueryID) (err error) {
	ctx, done := s.begin(ctx, lifecycle.OpUpgradeReward, attribute.String("query_id", id.String()))
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return err
	}
	if tx.Sender.IsZero() {
		return errorsmod.Wrap(bridge.ErrUnauthorized, "zero sender")
	}
	release, err := s.lock(id)
	if err != nil {
		return err
	}
	defer release()

	q, status, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.Check(s.machine.InStatus(lifecycle.OpUpgradeReward, id, status)); err != nil {
		return err
	}
	if err := s.ledger.TopUp(q, tx); err != nil {
		return err
	}
	if err := s.put(ctx, q); err != nil {
		return err
	}

	s.log.Debug("reward upgraded", logging.QueryID(id), logging.Amount(q.Balance()))
	s.emit(types.NewQueryEvent(types.EventRewardUpgraded, q.Request.Requester, id,
		types.Attr("reward", q.Request.Reward),
		types.Attr("gas_price", q.Request.GasPrice),
	))
	return nil
}
