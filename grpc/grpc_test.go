package bridgegrpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	bridge "github.com/blockberries/bridgeberry"
	bridgegrpc "github.com/blockberries/bridgeberry/grpc"
	"github.com/blockberries/bridgeberry/merkle"
	"github.com/blockberries/bridgeberry/server"
	bridgetest "github.com/blockberries/bridgeberry/testing"
	"github.com/blockberries/bridgeberry/types"
)

// connect serves the harness bridge over an in-memory listener and
// returns a client dialed to it.
func connect(t *testing.T, h *bridgetest.Harness) *bridgegrpc.Client {
	t.Helper()
	return connectServer(t, bridgegrpc.NewGRPCServer(h.Server))
}

func connectServer(t *testing.T, srv *bridgegrpc.GRPCServer) *bridgegrpc.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	srv.Register(gs)
	go func() {
		// Serve returns once the server is stopped.
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := bridgegrpc.Dial(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPC_DirectLifecycle(t *testing.T) {
	h := bridgetest.NewHarness(t, bridgetest.Options{})
	client := connect(t, h)
	ctx := context.Background()

	if client.Variant() != types.VariantDirect {
		t.Fatalf("variant: got %s", client.Variant())
	}
	if client.AsClaimer() != nil {
		t.Fatal("direct bridge exposes Claimer over gRPC")
	}

	floor, err := client.EstimateReward(ctx, 4)
	if err != nil {
		t.Fatalf("EstimateReward: %v", err)
	}
	if floor != 40 {
		t.Fatalf("floor: got %d, want 40", floor)
	}

	id, err := client.Post(ctx, h.Tx(bridgetest.Requester, 100, 4), types.PostRequest{Payload: []byte("price?")})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if err := client.UpgradeReward(ctx, h.Tx(bridgetest.Stranger, 10, 4), id); err != nil {
		t.Fatalf("UpgradeReward: %v", err)
	}
	if bal, err := client.RewardBalance(ctx, id); err != nil || bal != 110 {
		t.Fatalf("RewardBalance: %d, %v", bal, err)
	}

	payload, err := client.ReadPayload(ctx, id)
	if err != nil || string(payload) != "price?" {
		t.Fatalf("ReadPayload: %q, %v", payload, err)
	}
	req, err := client.ReadRequest(ctx, id)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Requester != bridgetest.Requester || req.Reward != 110 {
		t.Errorf("request: %+v", req)
	}

	report := bridgetest.DirectReport(id, []byte("42"))
	if err := client.ReportResult(ctx, h.Tx(bridgetest.Reporter, 0, 0), report); err != nil {
		t.Fatalf("ReportResult: %v", err)
	}
	resp, err := client.ReadResponse(ctx, id)
	if err != nil || string(resp.Result) != "42" || resp.Paid != 110 {
		t.Fatalf("ReadResponse: %+v, %v", resp, err)
	}

	deleted, err := client.Delete(ctx, h.Tx(bridgetest.Requester, 0, 0), id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if string(deleted.Result) != "42" {
		t.Errorf("deleted response: %+v", deleted)
	}
	st, err := client.Status(ctx, id)
	if err != nil || st != types.StatusRemoved {
		t.Fatalf("Status: %s, %v", st, err)
	}
	if n, err := client.QueryCount(ctx); err != nil || n != 1 {
		t.Fatalf("QueryCount: %d, %v", n, err)
	}
}

func TestGRPC_Errors(t *testing.T) {
	h := bridgetest.NewHarness(t, bridgetest.Options{})
	client := connect(t, h)
	ctx := context.Background()

	_, err := client.Post(ctx, h.Tx(bridgetest.Requester, 5, 4), types.PostRequest{Payload: []byte("x")})
	if !errors.Is(err, bridge.ErrInsufficientValue) {
		t.Fatalf("Post below floor: %v", err)
	}

	id := h.Post(bridgetest.Requester, 40, 4, []byte("q"))
	_, err = client.Delete(ctx, h.Tx(bridgetest.Requester, 0, 0), id)
	ws, ok := bridge.AsWrongStatus(err)
	if !ok {
		t.Fatalf("Delete of unresolved query: %v", err)
	}
	if ws.ID != id || ws.Actual != types.StatusPosted || len(ws.Expected) != 1 || ws.Expected[0] != types.StatusReported {
		t.Errorf("wrong status detail: %+v", ws)
	}

	err = client.ReportResult(ctx, h.Tx(bridgetest.Stranger, 0, 0), bridgetest.DirectReport(id, []byte("r")))
	if !errors.Is(err, bridge.ErrUnauthorized) {
		t.Errorf("stranger report: %v", err)
	}
	if _, err := client.ReadResponse(ctx, types.SequenceID(9)); !errors.Is(err, bridge.ErrNotFound) {
		t.Errorf("missing query: %v", err)
	}

	h.Server.Close()
	if _, err := client.QueryCount(ctx); !errors.Is(err, server.ErrClosed) {
		t.Errorf("closed bridge: %v", err)
	}
}

func TestGRPC_ClaimLifecycle(t *testing.T) {
	h := bridgetest.NewHarness(t, bridgetest.Options{Variant: types.VariantClaim})
	client := connect(t, h)
	ctx := context.Background()

	claimer := client.AsClaimer()
	if claimer == nil {
		t.Fatal("claim bridge has no Claimer over gRPC")
	}

	data := []byte("weather in lisbon")
	id, err := client.Post(ctx, h.Tx(bridgetest.Requester, 10, 0), types.PostRequest{Payload: data, ResultReward: 7})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if id != types.ContentID(data) {
		t.Fatalf("id: got %s", id)
	}

	if err := claimer.Claim(ctx, h.Tx(bridgetest.Claimant, 0, 0), []types.QueryID{id}, types.EligibilityProof{}); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	err = claimer.Claim(ctx, h.Tx(bridgetest.Stranger, 0, 0), []types.QueryID{id}, types.EligibilityProof{})
	if !errors.Is(err, bridge.ErrWrongStatus) {
		t.Fatalf("second claim: %v", err)
	}

	if err := claimer.ReportInclusion(ctx, h.Tx(bridgetest.Claimant, 0, 0), h.InclusionProof(id)); err != nil {
		t.Fatalf("ReportInclusion: %v", err)
	}
	result := []byte("sunny")
	report := types.ResultReport{ID: id, Result: result, Proof: h.TallyProof(id, result)}
	if err := client.ReportResult(ctx, h.Tx(bridgetest.Reporter, 0, 0), report); err != nil {
		t.Fatalf("ReportResult: %v", err)
	}

	if got := h.Bank.Paid(bridgetest.Claimant); got != 3 {
		t.Errorf("claimant paid %d, want 3", got)
	}
	if got := h.Bank.Paid(bridgetest.Reporter); got != 7 {
		t.Errorf("reporter paid %d, want 7", got)
	}
	resp, err := client.ReadResponse(ctx, id)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.ProofRef.IsZero() {
		t.Error("claim-variant response has no tally leaf")
	}
}

func TestGRPC_RecordHeader(t *testing.T) {
	h := bridgetest.NewHarness(t, bridgetest.Options{Variant: types.VariantClaim})
	relayer := types.Address{0x0e}
	client := connectServer(t, bridgegrpc.NewGRPCServer(h.Server).WithHeaders(h.Headers, []types.Address{relayer}))
	ctx := context.Background()

	id := h.PostSplit(bridgetest.Requester, 10, 7, []byte("tide at porto"))
	h.Claim(bridgetest.Claimant, id)
	req, err := client.ReadRequest(ctx, id)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}

	// An external block whose requests tree holds the request.
	tree := merkle.NewTree([]types.Hash{types.RequestLeaf(id, req.Digest), types.HashBytes([]byte("other"))})
	path, index, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	block := types.BlockRef(types.HashBytes([]byte("relayed block")))
	report := types.InclusionReport{ID: id, Proof: types.MerkleProof{Path: path, Index: index, Block: block}}

	claimer := client.AsClaimer()
	if err := claimer.ReportInclusion(ctx, h.Tx(bridgetest.Claimant, 0, 0), report); !errors.Is(err, bridge.ErrUnknownBlock) {
		t.Fatalf("inclusion before relay: %v", err)
	}

	err = client.RecordHeader(ctx, bridgetest.Stranger, block, tree.Root(), types.Hash{})
	if !errors.Is(err, bridge.ErrUnauthorized) {
		t.Fatalf("stranger RecordHeader: %v", err)
	}
	if err := client.RecordHeader(ctx, types.Address{}, block, tree.Root(), types.Hash{}); !errors.Is(err, bridge.ErrUnauthorized) {
		t.Fatalf("zero relayer RecordHeader: %v", err)
	}
	if _, err := h.Headers.Roots(ctx, block); !errors.Is(err, bridge.ErrUnknownBlock) {
		t.Fatalf("refused header was recorded: %v", err)
	}

	if err := client.RecordHeader(ctx, relayer, block, tree.Root(), types.Hash{}); err != nil {
		t.Fatalf("RecordHeader: %v", err)
	}
	if err := claimer.ReportInclusion(ctx, h.Tx(bridgetest.Claimant, 0, 0), report); err != nil {
		t.Fatalf("inclusion after relay: %v", err)
	}
	h.RequireStatus(id, types.StatusIncluded)
	if got := h.Bank.Paid(bridgetest.Claimant); got != 3 {
		t.Errorf("claimant paid %d, want 3", got)
	}
}

func TestGRPC_RecordHeaderDisabled(t *testing.T) {
	h := bridgetest.NewHarness(t, bridgetest.Options{})
	client := connect(t, h)

	err := client.RecordHeader(context.Background(), bridgetest.Reporter, types.BlockRef{1}, types.Hash{2}, types.Hash{3})
	if !errors.Is(err, bridge.ErrUnsupported) {
		t.Fatalf("RecordHeader without relay: %v", err)
	}
}
