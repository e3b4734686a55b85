package bridgegrpc

import (
	"context"
	"net"

	errorsmod "cosmossdk.io/errors"
	"google.golang.org/grpc"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Compile-time interface check.
var _ BridgeServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a bridge as a gRPC service. No type conversion
// is needed: domain types are serialized directly via cramberry.
type GRPCServer struct {
	b bridge.Connection

	headers  HeaderRecorder
	relayers map[types.Address]struct{}
}

// HeaderRecorder accepts the roots of external blocks.
type HeaderRecorder interface {
	Record(block types.BlockRef, requestsRoot, talliesRoot types.Hash)
}

// NewGRPCServer creates a gRPC server wrapping the given bridge.
func NewGRPCServer(b bridge.Connection) *GRPCServer {
	return &GRPCServer{b: b}
}

// WithHeaders enables RecordHeader: the listed relayers may record
// external block roots into rec. Without it RecordHeader is refused.
func (s *GRPCServer) WithHeaders(rec HeaderRecorder, relayers []types.Address) *GRPCServer {
	s.headers = rec
	s.relayers = make(map[types.Address]struct{}, len(relayers))
	for _, r := range relayers {
		if !r.IsZero() {
			s.relayers[r] = struct{}{}
		}
	}
	return s
}

// Register adds the bridge service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterBridgeServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener and blocks until
// it stops.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Bridge returns the underlying bridge for advanced use.
func (s *GRPCServer) Bridge() bridge.Connection {
	return s.b
}

func (s *GRPCServer) claimer() (bridge.Claimer, error) {
	c := s.b.AsClaimer()
	if c == nil {
		return nil, errorsmod.Wrapf(bridge.ErrUnsupported, "%s variant", s.b.Variant())
	}
	return c, nil
}

// --- State-changing RPCs ---

func (s *GRPCServer) Post(ctx context.Context, req *PostRequest) (*PostResponse, error) {
	id, err := s.b.Post(ctx, req.Tx, req.Request)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &PostResponse{ID: id}, nil
}

func (s *GRPCServer) UpgradeReward(ctx context.Context, req *TxQueryRequest) (*Empty, error) {
	if err := s.b.UpgradeReward(ctx, req.Tx, req.ID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Claim(ctx context.Context, req *ClaimRequest) (*Empty, error) {
	c, err := s.claimer()
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := c.Claim(ctx, req.Tx, req.IDs, req.Proof); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ReportInclusion(ctx context.Context, req *ReportInclusionRequest) (*Empty, error) {
	c, err := s.claimer()
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := c.ReportInclusion(ctx, req.Tx, req.Report); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ReportResult(ctx context.Context, req *ReportResultRequest) (*Empty, error) {
	if err := s.b.ReportResult(ctx, req.Tx, req.Report); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *TxQueryRequest) (*types.Response, error) {
	resp, err := s.b.Delete(ctx, req.Tx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &resp, nil
}

// --- Read RPCs ---

func (s *GRPCServer) Status(ctx context.Context, req *QueryRequest) (*StatusResponse, error) {
	st, err := s.b.Status(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &StatusResponse{Status: st}, nil
}

func (s *GRPCServer) ReadRequest(ctx context.Context, req *QueryRequest) (*types.Request, error) {
	r, err := s.b.ReadRequest(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &r, nil
}

func (s *GRPCServer) ReadPayload(ctx context.Context, req *QueryRequest) (*PayloadResponse, error) {
	data, err := s.b.ReadPayload(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &PayloadResponse{Payload: data}, nil
}

func (s *GRPCServer) ReadResponse(ctx context.Context, req *QueryRequest) (*types.Response, error) {
	r, err := s.b.ReadResponse(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &r, nil
}

func (s *GRPCServer) RewardBalance(ctx context.Context, req *QueryRequest) (*AmountResponse, error) {
	n, err := s.b.RewardBalance(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &AmountResponse{Amount: n}, nil
}

func (s *GRPCServer) EstimateReward(ctx context.Context, req *EstimateRequest) (*AmountResponse, error) {
	n, err := s.b.EstimateReward(ctx, req.GasPrice)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &AmountResponse{Amount: n}, nil
}

func (s *GRPCServer) QueryCount(ctx context.Context, _ *Empty) (*AmountResponse, error) {
	n, err := s.b.QueryCount(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &AmountResponse{Amount: n}, nil
}

func (s *GRPCServer) Info(_ context.Context, _ *Empty) (*InfoResponse, error) {
	return &InfoResponse{Variant: s.b.Variant()}, nil
}

// --- Header relay ---

func (s *GRPCServer) RecordHeader(ctx context.Context, req *RecordHeaderRequest) (*Empty, error) {
	if s.headers == nil {
		return nil, toStatus(ctx, errorsmod.Wrap(bridge.ErrUnsupported, "header relay not enabled"))
	}
	if _, ok := s.relayers[req.Relayer]; !ok {
		return nil, toStatus(ctx, errorsmod.Wrapf(bridge.ErrUnauthorized, "%s is not a relayer", req.Relayer))
	}
	s.headers.Record(req.Block, req.Requests, req.Tallies)
	return &Empty{}, nil
}
