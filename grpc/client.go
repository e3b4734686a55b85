package bridgegrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// Compile-time interface check.
var _ bridge.Connection = (*Client)(nil)

// Client implements bridge.Connection for remote bridges over gRPC
// using cramberry serialization. Bridge errors are rebuilt from the
// call trailers, so errors.Is works across the wire.
type Client struct {
	cc      *grpc.ClientConn
	variant types.Variant
}

// Dial connects to a remote bridge and learns its variant.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("bridge client: dial %s: %w", addr, err)
	}
	c := &Client{cc: cc}
	info := new(InfoResponse)
	if err := c.invoke(ctx, "Info", &Empty{}, info); err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("bridge client: info from %s: %w", addr, err)
	}
	c.variant = info.Variant
	return c, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	var md metadata.MD
	err := c.cc.Invoke(ctx, fullMethod(method), req, resp, grpc.Trailer(&md))
	return fromStatus(err, md)
}

// --- Bridge ---

func (c *Client) Post(ctx context.Context, tx types.TxContext, req types.PostRequest) (types.QueryID, error) {
	resp := new(PostResponse)
	if err := c.invoke(ctx, "Post", &PostRequest{Tx: tx, Request: req}, resp); err != nil {
		return types.QueryID{}, err
	}
	return resp.ID, nil
}

func (c *Client) UpgradeReward(ctx context.Context, tx types.TxContext, id types.QueryID) error {
	return c.invoke(ctx, "UpgradeReward", &TxQueryRequest{Tx: tx, ID: id}, new(Empty))
}

func (c *Client) ReportResult(ctx context.Context, tx types.TxContext, report types.ResultReport) error {
	return c.invoke(ctx, "ReportResult", &ReportResultRequest{Tx: tx, Report: report}, new(Empty))
}

func (c *Client) Delete(ctx context.Context, tx types.TxContext, id types.QueryID) (types.Response, error) {
	resp := new(types.Response)
	if err := c.invoke(ctx, "Delete", &TxQueryRequest{Tx: tx, ID: id}, resp); err != nil {
		return types.Response{}, err
	}
	return *resp, nil
}

// --- Reader ---

func (c *Client) Status(ctx context.Context, id types.QueryID) (types.Status, error) {
	resp := new(StatusResponse)
	if err := c.invoke(ctx, "Status", &QueryRequest{ID: id}, resp); err != nil {
		return types.StatusUnknown, err
	}
	return resp.Status, nil
}

func (c *Client) ReadRequest(ctx context.Context, id types.QueryID) (types.Request, error) {
	resp := new(types.Request)
	if err := c.invoke(ctx, "ReadRequest", &QueryRequest{ID: id}, resp); err != nil {
		return types.Request{}, err
	}
	return *resp, nil
}

func (c *Client) ReadPayload(ctx context.Context, id types.QueryID) ([]byte, error) {
	resp := new(PayloadResponse)
	if err := c.invoke(ctx, "ReadPayload", &QueryRequest{ID: id}, resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (c *Client) ReadResponse(ctx context.Context, id types.QueryID) (types.Response, error) {
	resp := new(types.Response)
	if err := c.invoke(ctx, "ReadResponse", &QueryRequest{ID: id}, resp); err != nil {
		return types.Response{}, err
	}
	return *resp, nil
}

func (c *Client) RewardBalance(ctx context.Context, id types.QueryID) (uint64, error) {
	resp := new(AmountResponse)
	if err := c.invoke(ctx, "RewardBalance", &QueryRequest{ID: id}, resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (c *Client) EstimateReward(ctx context.Context, gasPrice uint64) (uint64, error) {
	resp := new(AmountResponse)
	if err := c.invoke(ctx, "EstimateReward", &EstimateRequest{GasPrice: gasPrice}, resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (c *Client) QueryCount(ctx context.Context) (uint64, error) {
	resp := new(AmountResponse)
	if err := c.invoke(ctx, "QueryCount", &Empty{}, resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// Variant returns the variant the remote bridge reported at dial time.
func (c *Client) Variant() types.Variant { return c.variant }

// RecordHeader records the roots of an external block on behalf of
// relayer. The remote must list relayer in its relayer set.
func (c *Client) RecordHeader(ctx context.Context, relayer types.Address, block types.BlockRef, requestsRoot, talliesRoot types.Hash) error {
	req := &RecordHeaderRequest{Relayer: relayer, Block: block, Requests: requestsRoot, Tallies: talliesRoot}
	return c.invoke(ctx, "RecordHeader", req, new(Empty))
}

// --- Claimer ---

func (c *Client) AsClaimer() bridge.Claimer {
	if c.variant.HasClaims() {
		return &clientClaimer{c}
	}
	return nil
}

type clientClaimer struct{ c *Client }

func (w *clientClaimer) Claim(ctx context.Context, tx types.TxContext, ids []types.QueryID, proof types.EligibilityProof) error {
	return w.c.invoke(ctx, "Claim", &ClaimRequest{Tx: tx, IDs: ids, Proof: proof}, new(Empty))
}

func (w *clientClaimer) ReportInclusion(ctx context.Context, tx types.TxContext, report types.InclusionReport) error {
	return w.c.invoke(ctx, "ReportInclusion", &ReportInclusionRequest{Tx: tx, Report: report}, new(Empty))
}
