package server

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.opentelemetry.io/otel/attribute"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/escrow"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/types"
)

// Claim reserves every id for the sender, or none of them.
func (s *Server) Claim(ctx context.Context, tx types.TxContext, ids []types.QueryID, proof types.EligibilityProof) (err error) {
	ctx, done := s.begin(ctx, lifecycle.OpClaim,
		attribute.String("claimant", tx.Sender.String()),
		attribute.Int("ids", len(ids)),
	)
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return err
	}
	if !s.machine.Supports(lifecycle.OpClaim) {
		return errorsmod.Wrapf(bridge.ErrUnsupported, "claim in %s variant", s.params.Variant)
	}
	if tx.Sender.IsZero() {
		return errorsmod.Wrap(bridge.ErrUnauthorized, "zero claimant")
	}
	if len(ids) == 0 {
		return errorsmod.Wrap(bridge.ErrNotFound, "empty claim batch")
	}
	if err := s.eligibility.CheckEligibility(ctx, tx.Sender, proof, tx.Height); err != nil {
		return err
	}

	release, err := s.lock(ids...)
	if err != nil {
		return err
	}
	defer release()

	staged := make([]*types.Query, 0, len(ids))
	seen := make(map[types.QueryID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		q, _, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.Check(s.machine.Claimable(id, q, tx.Height)); err != nil {
			return err
		}
		q.Claim = types.Claim{Claimant: tx.Sender, Epoch: tx.Height}
		staged = append(staged, q)
	}
	if err := s.put(ctx, staged...); err != nil {
		return err
	}

	for _, q := range staged {
		s.log.Debug("query claimed", logging.QueryID(q.ID), logging.Address("claimant", tx.Sender), logging.Height(tx.Height))
		s.emit(types.NewQueryEvent(types.EventQueryClaimed, q.Request.Requester, q.ID,
			types.Attr("claimant", tx.Sender),
			types.Attr("epoch", tx.Height),
		))
	}
	return nil
}

// ReportInclusion proves a claimed request against the requests root
// of an external block and pays the inclusion reward to the claimant.
func (s *Server) ReportInclusion(ctx context.Context, tx types.TxContext, report types.InclusionReport) (err error) {
	ctx, done := s.begin(ctx, lifecycle.OpReportInclusion,
		attribute.String("query_id", report.ID.String()),
		attribute.String("block", report.Proof.Block.String()),
	)
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return err
	}
	if !s.machine.Supports(lifecycle.OpReportInclusion) {
		return errorsmod.Wrapf(bridge.ErrUnsupported, "report_inclusion in %s variant", s.params.Variant)
	}
	if tx.Sender.IsZero() {
		return errorsmod.Wrap(bridge.ErrUnauthorized, "zero sender")
	}

	id := report.ID
	release, err := s.lock(id)
	if err != nil {
		return err
	}
	defer release()

	q, status, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.Check(s.machine.InStatus(lifecycle.OpReportInclusion, id, status)); err != nil {
		return err
	}
	leaf := types.RequestLeaf(id, q.Request.Digest)
	if err := s.verifyProof(ctx, report.Proof, leaf, s.headers.RequestsRoot, "requests"); err != nil {
		return err
	}

	before := q.Clone()
	payout, err := s.ledger.Release(q, escrow.LegInclusion, q.Claim.Claimant)
	if err != nil {
		return err
	}
	q.InclusionHash = leaf
	if err := s.put(ctx, q); err != nil {
		return err
	}
	settled := s.guard.MarkSettling(id)
	release()

	err = s.settle(ctx, lifecycle.OpReportInclusion, before, q, payout)
	settled()
	if err != nil {
		return err
	}

	s.log.Debug("inclusion reported", logging.QueryID(id), logging.Address("claimant", q.Claim.Claimant), logging.Amount(payout.Amount))
	s.emit(types.NewQueryEvent(types.EventInclusionReported, q.Request.Requester, id,
		types.Attr("claimant", q.Claim.Claimant),
		types.Attr("block", report.Proof.Block),
		types.Attr("paid", payout.Amount),
	))
	return nil
}
