package server

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.opentelemetry.io/otel/attribute"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/escrow"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// ReportResult resolves a query and pays its result reward to the sender.
func (s *Server) ReportResult(ctx context.Context, tx types.TxContext, report types.ResultReport) (err error) {
	ctx, done := s.begin(ctx, lifecycle.OpReportResult,
		attribute.String("query_id", report.ID.String()),
		attribute.String("reporter", tx.Sender.String()),
	)
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return err
	}
	if tx.Sender.IsZero() {
		return errorsmod.Wrap(bridge.ErrUnauthorized, "zero reporter")
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

	proofRef := report.ProofRef
	if s.params.Variant.HasClaims() {
		if err := lifecycle.Check(
			s.machine.InStatus(lifecycle.OpReportResult, id, status),
			hasResult(report),
		); err != nil {
			return err
		}
		proofRef = types.TallyLeaf(q.InclusionHash, report.Result)
		if err := s.verifyProof(ctx, *report.Proof, proofRef, s.headers.TalliesRoot, "tallies"); err != nil {
			return err
		}
	} else {
		if err := lifecycle.Check(
			s.machine.InStatus(lifecycle.OpReportResult, id, status),
			s.isReporter(ctx, tx.Sender),
			lifecycle.NonEmptyResult(report),
		); err != nil {
			return err
		}
	}
	if _, err := s.currentPayload(ctx, q); err != nil {
		return err
	}

	before := q.Clone()
	payout, err := s.ledger.Release(q, escrow.LegResult, tx.Sender)
	if err != nil {
		return err
	}
	ts := report.Timestamp
	if ts == 0 {
		ts = tx.Height
	}
	q.Response = types.Response{
		Reporter:  tx.Sender,
		Result:    append([]byte(nil), report.Result...),
		ProofRef:  proofRef,
		Timestamp: ts,
		Paid:      payout.Amount,
	}
	if err := s.put(ctx, q); err != nil {
		return err
	}
	settled := s.guard.MarkSettling(id)
	release()

	err = s.settle(ctx, lifecycle.OpReportResult, before, q, payout)
	settled()
	if err != nil {
		return err
	}

	s.log.Debug("result reported", logging.QueryID(id), logging.Address("reporter", tx.Sender), logging.Amount(payout.Amount))
	s.emit(types.NewQueryEvent(types.EventResultReported, q.Request.Requester, id,
		types.Attr("reporter", tx.Sender),
		types.Attr("proof_ref", proofRef),
		types.Attr("paid", payout.Amount),
	))
	return nil
}

// hasResult requires a result payload and a tally proof.
func hasResult(report types.ResultReport) lifecycle.Precondition {
	return func() error {
		if len(report.Result) == 0 {
			return errorsmod.Wrapf(bridge.ErrEmptyResult, "query %s: empty result", report.ID)
		}
		if report.Proof == nil {
			return errorsmod.Wrapf(bridge.ErrInvalidProof, "query %s: no tally proof", report.ID)
		}
		return nil
	}
}

// isReporter requires who to be in the reporter set.
func (s *Server) isReporter(ctx context.Context, who types.Address) lifecycle.Precondition {
	return func() error {
		ok, err := s.reporters.IsReporter(ctx, who)
		if err != nil {
			return err
		}
		if !ok {
			return errorsmod.Wrapf(bridge.ErrUnauthorized, "%s is not a reporter", who)
		}
		return nil
	}
}

// Delete erases a resolved query on behalf of its requester and
// returns the final response.
func (s *Server) Delete(ctx context.Context, tx types.TxContext, id types.QueryID) (resp types.Response, err error) {
	ctx, done := s.begin(ctx, lifecycle.OpDelete, attribute.String("query_id", id.String()))
	defer func() { done(err) }()

	if err := s.guard.CheckServing(); err != nil {
		return types.Response{}, err
	}
	release, err := s.lock(id)
	if err != nil {
		return types.Response{}, err
	}
	defer release()

	q, status, err := s.load(ctx, id)
	if err != nil {
		return types.Response{}, err
	}
	if err := lifecycle.Check(
		s.machine.InStatus(lifecycle.OpDelete, id, status),
		lifecycle.RequesterIs(q, tx.Sender),
	); err != nil {
		return types.Response{}, err
	}

	resp = q.Clone().Response
	var b store.Batch
	b.Delete(id)
	if err := s.store.Apply(ctx, &b); err != nil {
		return types.Response{}, err
	}

	s.log.Debug("query deleted", logging.QueryID(id))
	s.emit(types.NewQueryEvent(types.EventQueryDeleted, q.Request.Requester, id))
	return resp, nil
}
