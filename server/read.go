package server

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// existing loads the record under id or fails with ErrNotFound.
func (s *Server) existing(ctx context.Context, id types.QueryID) (*types.Query, error) {
	if err := s.guard.CheckServing(); err != nil {
		return nil, err
	}
	q, status, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, errorsmod.Wrapf(bridge.ErrNotFound, "query %s is %s", id, status)
	}
	return q, nil
}

// Status returns the lifecycle status of id. Unknown ids are not an error.
func (s *Server) Status(ctx context.Context, id types.QueryID) (types.Status, error) {
	if err := s.guard.CheckServing(); err != nil {
		return types.StatusUnknown, err
	}
	_, status, err := s.load(ctx, id)
	return status, err
}

// ReadRequest returns the request half of a query after checking its
// payload still matches the recorded digest.
func (s *Server) ReadRequest(ctx context.Context, id types.QueryID) (types.Request, error) {
	q, err := s.existing(ctx, id)
	if err != nil {
		return types.Request{}, err
	}
	if _, err := s.currentPayload(ctx, q); err != nil {
		return types.Request{}, err
	}
	return q.Request, nil
}

// ReadPayload returns the integrity-checked payload bytes of a query,
// whether held inline or by reference.
func (s *Server) ReadPayload(ctx context.Context, id types.QueryID) ([]byte, error) {
	q, err := s.existing(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.currentPayload(ctx, q)
}

// ReadResponse returns the response half of a query. It is zero until
// the query is Reported.
func (s *Server) ReadResponse(ctx context.Context, id types.QueryID) (types.Response, error) {
	q, err := s.existing(ctx, id)
	if err != nil {
		return types.Response{}, err
	}
	return q.Response, nil
}

// RewardBalance returns the value still escrowed for a query.
func (s *Server) RewardBalance(ctx context.Context, id types.QueryID) (uint64, error) {
	q, err := s.existing(ctx, id)
	if err != nil {
		return 0, err
	}
	return q.Balance(), nil
}

// EstimateReward returns the minimum reward at the given gas price.
func (s *Server) EstimateReward(_ context.Context, gasPrice uint64) (uint64, error) {
	return s.ledger.PriceFloor(gasPrice)
}

// QueryCount returns the number of queries ever posted.
func (s *Server) QueryCount(ctx context.Context) (uint64, error) {
	if err := s.guard.CheckServing(); err != nil {
		return 0, err
	}
	return s.store.Count(ctx)
}
