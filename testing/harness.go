package bridgetest

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/headers"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/merkle"
	"github.com/blockberries/bridgeberry/metrics"
	"github.com/blockberries/bridgeberry/payload"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// Well-known identities used across harness-driven tests.
var (
	Requester = types.Address{0xa1}
	Reporter  = types.Address{0xb2}
	Claimant  = types.Address{0xc3}
	Stranger  = types.Address{0xd4}
)

// TestGasEstimate is the report cost the harness configures, so that a
// gas price of 4 gives a price floor of 40.
const TestGasEstimate = 10

// Options configures a Harness. Zero values select in-memory
// collaborators and a direct-variant bridge.
type Options struct {
	Variant     types.Variant
	ClaimExpiry uint64
	Store       store.Store
	Eligibility bridge.Eligibility
	Logger      *logging.Logger
	Metrics     metrics.Metrics
	Tracer      trace.TracerProvider
}

// Harness drives a bridge server with mock collaborators.
type Harness struct {
	t testing.TB

	Server    *server.Server
	Store     store.Store
	Bank      *MockBank
	Headers   *headers.Memory
	Reporters *MockReporters
	Payloads  *payload.Store
	Events    *EventRecorder

	// Height is the host block height of the next transaction.
	Height uint64
	blocks uint64
}

// NewHarness creates a harness. The server is closed when the test ends.
func NewHarness(t testing.TB, opts Options) *Harness {
	t.Helper()
	h := &Harness{
		t:         t,
		Store:     opts.Store,
		Bank:      &MockBank{},
		Headers:   headers.NewMemory(),
		Reporters: NewMockReporters(Reporter),
		Payloads:  payload.NewMemoryStore(),
		Events:    &EventRecorder{},
		Height:    1,
	}
	if h.Store == nil {
		h.Store = store.NewMemoryStore()
	}

	params := server.DefaultParams()
	params.Variant = opts.Variant
	params.ReportGasEstimate = TestGasEstimate
	if opts.ClaimExpiry != 0 {
		params.ClaimExpiry = opts.ClaimExpiry
	}
	srv, err := server.New(server.Config{
		Params:      params,
		Store:       h.Store,
		Bank:        h.Bank,
		Headers:     h.Headers,
		Reporters:   h.Reporters,
		Payloads:    h.Payloads,
		Eligibility: opts.Eligibility,
		Events:      h.Events,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,

		TracerProvider: opts.Tracer,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	h.Server = srv
	t.Cleanup(func() {
		_ = srv.Close()
		_ = h.Payloads.Close()
	})
	return h
}

// Tx builds a transaction context at the current height.
func (h *Harness) Tx(sender types.Address, value, gasPrice uint64) types.TxContext {
	return types.TxContext{
		Sender:   sender,
		Value:    value,
		GasPrice: gasPrice,
		Height:   h.Height,
		Time:     types.Timestamp{Seconds: int64(h.Height)},
	}
}

// Advance moves the host chain forward n blocks.
func (h *Harness) Advance(n uint64) {
	h.Height += n
}

// Post posts an inline payload and fails the test on error.
func (h *Harness) Post(sender types.Address, value, gasPrice uint64, data []byte) types.QueryID {
	h.t.Helper()
	return h.PostRequest(h.Tx(sender, value, gasPrice), types.PostRequest{Payload: data})
}

// PostSplit posts a claim-variant query reserving resultReward of value
// for the result reporter.
func (h *Harness) PostSplit(sender types.Address, value, resultReward uint64, data []byte) types.QueryID {
	h.t.Helper()
	return h.PostRequest(h.Tx(sender, value, 0), types.PostRequest{Payload: data, ResultReward: resultReward})
}

// PostRequest posts req under tx and fails the test on error.
func (h *Harness) PostRequest(tx types.TxContext, req types.PostRequest) types.QueryID {
	h.t.Helper()
	id, err := h.Server.Post(context.Background(), tx, req)
	if err != nil {
		h.t.Fatalf("Post: %v", err)
	}
	return id
}

// Report resolves id as the configured reporter (direct variant).
func (h *Harness) Report(id types.QueryID, result []byte) {
	h.t.Helper()
	if err := h.Server.ReportResult(context.Background(), h.Tx(Reporter, 0, 0), DirectReport(id, result)); err != nil {
		h.t.Fatalf("ReportResult %s: %v", id, err)
	}
}

// DirectReport builds a direct-variant result report whose proof
// reference is the hash of the result.
func DirectReport(id types.QueryID, result []byte) types.ResultReport {
	return types.ResultReport{ID: id, ProofRef: types.HashBytes(result), Result: result}
}

// Claim claims ids for claimant and fails the test on error.
func (h *Harness) Claim(claimant types.Address, ids ...types.QueryID) {
	h.t.Helper()
	if err := h.Server.Claim(context.Background(), h.Tx(claimant, 0, 0), ids, types.EligibilityProof{}); err != nil {
		h.t.Fatalf("Claim: %v", err)
	}
}

// Include proves the inclusion of id in a fresh external block and
// fails the test on error.
func (h *Harness) Include(sender types.Address, id types.QueryID) {
	h.t.Helper()
	report := h.InclusionProof(id)
	if err := h.Server.ReportInclusion(context.Background(), h.Tx(sender, 0, 0), report); err != nil {
		h.t.Fatalf("ReportInclusion %s: %v", id, err)
	}
}

// Resolve reports result for an included query with a tally proof
// against a fresh external block and fails the test on error.
func (h *Harness) Resolve(sender types.Address, id types.QueryID, result []byte) {
	h.t.Helper()
	report := types.ResultReport{ID: id, Result: result, Proof: h.TallyProof(id, result)}
	if err := h.Server.ReportResult(context.Background(), h.Tx(sender, 0, 0), report); err != nil {
		h.t.Fatalf("ReportResult %s: %v", id, err)
	}
}

// InclusionProof records an external block whose requests tree holds
// the request leaf of id among filler leaves and returns a report
// proving it.
func (h *Harness) InclusionProof(id types.QueryID) types.InclusionReport {
	h.t.Helper()
	q := h.record(id)
	block, proof := h.block(types.RequestLeaf(id, q.Request.Digest), true)
	proof.Block = block
	return types.InclusionReport{ID: id, Proof: proof}
}

// TallyProof records an external block whose tallies tree holds the
// tally leaf of id and result and returns the proof.
func (h *Harness) TallyProof(id types.QueryID, result []byte) *types.MerkleProof {
	h.t.Helper()
	q := h.record(id)
	block, proof := h.block(types.TallyLeaf(q.InclusionHash, result), false)
	proof.Block = block
	return &proof
}

func (h *Harness) record(id types.QueryID) *types.Query {
	h.t.Helper()
	q, err := h.Store.Get(context.Background(), id)
	if err != nil {
		h.t.Fatalf("load %s: %v", id, err)
	}
	return q
}

// block builds a five-leaf tree with leaf at position 2 and records its
// root as the requests or tallies root of a new block.
func (h *Harness) block(leaf types.Hash, requests bool) (types.BlockRef, types.MerkleProof) {
	h.t.Helper()
	h.blocks++
	leaves := make([]types.Hash, 5)
	for i := range leaves {
		var seed [16]byte
		binary.BigEndian.PutUint64(seed[:8], h.blocks)
		binary.BigEndian.PutUint64(seed[8:], uint64(i))
		leaves[i] = types.HashBytes(seed[:])
	}
	leaves[2] = leaf
	tree := merkle.NewTree(leaves)
	path, index, err := tree.Proof(2)
	if err != nil {
		h.t.Fatalf("merkle proof: %v", err)
	}

	var ref types.BlockRef
	binary.BigEndian.PutUint64(ref[:8], h.blocks)
	if requests {
		h.Headers.Record(ref, tree.Root(), types.Hash{})
	} else {
		h.Headers.Record(ref, types.Hash{}, tree.Root())
	}
	return ref, types.MerkleProof{Path: path, Index: index}
}

// RequireStatus fails the test unless id is in want.
func (h *Harness) RequireStatus(id types.QueryID, want types.Status) {
	h.t.Helper()
	got, err := h.Server.Status(context.Background(), id)
	if err != nil {
		h.t.Fatalf("Status %s: %v", id, err)
	}
	if got != want {
		h.t.Fatalf("status of %s: got %s, want %s", id, got, want)
	}
}

// RequireBalance fails the test unless id escrows want.
func (h *Harness) RequireBalance(id types.QueryID, want uint64) {
	h.t.Helper()
	got, err := h.Server.RewardBalance(context.Background(), id)
	if err != nil {
		h.t.Fatalf("RewardBalance %s: %v", id, err)
	}
	if got != want {
		h.t.Fatalf("balance of %s: got %d, want %d", id, got, want)
	}
}

// RequireError fails the test unless err matches target.
func RequireError(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}
