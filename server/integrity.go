package server

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/merkle"
	"github.com/blockberries/bridgeberry/payload"
	"github.com/blockberries/bridgeberry/types"
)

// postedPayload returns the payload bytes a new query commits to.
// Exactly one of the inline payload and the reference must be set.
func (s *Server) postedPayload(ctx context.Context, req types.PostRequest) ([]byte, error) {
	switch {
	case len(req.Payload) > 0 && req.Ref != "":
		return nil, errorsmod.Wrap(bridge.ErrEmptyPayload, "both inline payload and reference given")
	case req.Ref != "":
		if s.payloads == nil {
			return nil, errorsmod.Wrapf(bridge.ErrEmptyPayload, "reference %q: no payload store", req.Ref)
		}
		data, err := s.payloads.Fetch(ctx, req.Ref)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errorsmod.Wrapf(bridge.ErrEmptyPayload, "reference %q is empty", req.Ref)
		}
		return data, nil
	case len(req.Payload) > 0:
		return req.Payload, nil
	default:
		return nil, errorsmod.Wrap(bridge.ErrEmptyPayload, "no payload")
	}
}

// currentPayload returns the payload bytes of q as they are now and
// checks them against the digest recorded at post time.
func (s *Server) currentPayload(ctx context.Context, q *types.Query) ([]byte, error) {
	data := q.Request.Payload
	if q.Request.Ref != "" {
		if s.payloads == nil {
			return nil, errorsmod.Wrapf(bridge.ErrTamperedRequest, "query %s: no payload store", q.ID)
		}
		var err error
		data, err = s.payloads.Fetch(ctx, q.Request.Ref)
		if errors.Is(err, bridge.ErrEmptyPayload) {
			return nil, errorsmod.Wrapf(bridge.ErrTamperedRequest, "query %s: payload %q is gone", q.ID, q.Request.Ref)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := payload.Verify(q.ID, q.Request.Digest, data); err != nil {
		return nil, err
	}
	return data, nil
}

// rootFunc looks up one of the merkle roots of an external block.
type rootFunc func(ctx context.Context, block types.BlockRef) (types.Hash, error)

// verifyProof checks leaf against the root rootOf returns for the
// proof's block. Paths longer than MaxProofDepth are rejected before
// any hashing.
func (s *Server) verifyProof(ctx context.Context, proof types.MerkleProof, leaf types.Hash, rootOf rootFunc, tree string) error {
	if len(proof.Path) > s.params.MaxProofDepth {
		return errorsmod.Wrapf(bridge.ErrInvalidProof, "%s path of %d exceeds depth %d", tree, len(proof.Path), s.params.MaxProofDepth)
	}
	root, err := rootOf(ctx, proof.Block)
	if err != nil {
		return err
	}
	if !merkle.Verify(proof.Path, root, proof.Index, leaf) {
		return errorsmod.Wrapf(bridge.ErrInvalidProof, "%s root of block %s", tree, proof.Block)
	}
	return nil
}
