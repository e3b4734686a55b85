package hostchain

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/merkle"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/types"
)

var (
	requester = TestAddress(1)
	reporter  = TestAddress(2)
	claimant  = TestAddress(3)
	relayer   = TestAddress(4)
)

func newApp(t *testing.T, variant types.Variant) *App {
	t.Helper()
	params := server.DefaultParams()
	params.Variant = variant
	params.ReportGasEstimate = 10
	app, err := New(Config{
		Params:    params,
		Reporters: []types.Address{reporter},
		Relayers:  []types.Address{relayer},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func executeAndCommit(t *testing.T, app *App, txs ...[]byte) BlockOutcome {
	t.Helper()
	ctx := context.Background()
	block := Block{
		Height: app.Height() + 1,
		Time:   time.Unix(1700000000, 0).Add(time.Duration(app.Height()) * time.Second),
		Txs:    txs,
	}
	out, err := app.ExecuteBlock(ctx, block)
	require.NoError(t, err)
	require.NoError(t, app.Commit(ctx))
	return out
}

func requireOK(t *testing.T, o TxOutcome) {
	t.Helper()
	require.Truef(t, o.OK(), "tx %d failed: code %d: %s", o.Index, o.Code, o.Info)
}

func queryValue(t *testing.T, app *App, path string, data []byte, v any) {
	t.Helper()
	res := app.Query(context.Background(), path, data)
	require.Zerof(t, res.Code, "query %s: %s", path, res.Info)
	require.NoError(t, cbor.Unmarshal(res.Value, v))
}

// rootWith returns the root of a two-leaf tree holding leaf at index 0
// and the proof of it.
func rootWith(t *testing.T, leaf types.Hash) (types.Hash, []types.Hash, uint64) {
	t.Helper()
	tree := merkle.NewTree([]types.Hash{leaf, types.HashBytes([]byte("sibling"))})
	path, index, err := tree.Proof(0)
	require.NoError(t, err)
	return tree.Root(), path, index
}

func TestHostchain_DirectLifecycle(t *testing.T) {
	app := newApp(t, types.VariantDirect)

	out := executeAndCommit(t, app, PostTx(requester, 100, 4, []byte("price?")))
	requireOK(t, out.TxOutcomes[0])
	id := types.QueryID(out.TxOutcomes[0].Data)
	require.Equal(t, types.SequenceID(1), id)
	require.Len(t, out.TxOutcomes[0].Events, 1)
	require.Equal(t, types.EventQueryPosted, out.TxOutcomes[0].Events[0].Kind)

	out = executeAndCommit(t, app,
		UpgradeTx(requester, 10, 4, id),
		ResultTx(reporter, types.ResultReport{ID: id, ProofRef: types.HashBytes([]byte("tx")), Result: []byte("42")}),
	)
	requireOK(t, out.TxOutcomes[0])
	requireOK(t, out.TxOutcomes[1])
	require.Equal(t, types.EventResultReported, out.TxOutcomes[1].Events[0].Kind)
	require.Equal(t, uint64(110), app.Bank().Balance(reporter).Uint64())

	var status string
	queryValue(t, app, "/status", id[:], &status)
	require.Equal(t, "Reported", status)

	out = executeAndCommit(t, app, DeleteTx(requester, id))
	requireOK(t, out.TxOutcomes[0])
	var resp types.Response
	require.NoError(t, cbor.Unmarshal(out.TxOutcomes[0].Data, &resp))
	require.Equal(t, []byte("42"), resp.Result)
	require.Equal(t, reporter, resp.Reporter)

	queryValue(t, app, "/status", id[:], &status)
	require.Equal(t, "Removed", status)

	var count uint64
	queryValue(t, app, "/count", nil, &count)
	require.Equal(t, uint64(1), count)
}

func TestHostchain_FailedTxKeepsBlockGoing(t *testing.T) {
	app := newApp(t, types.VariantDirect)

	out := executeAndCommit(t, app,
		PostTx(requester, 1, 4, []byte("cheap")),
		[]byte{0xff},
		ResultTx(requester, types.ResultReport{ID: types.SequenceID(1), ProofRef: types.Hash{1}, Result: []byte("x")}),
		PostTx(requester, 40, 4, []byte("exact floor")),
	)
	require.Len(t, out.TxOutcomes, 4)
	require.Equal(t, bridge.CodeOf(bridge.ErrInsufficientValue), out.TxOutcomes[0].Code)
	require.Equal(t, uint32(1), out.TxOutcomes[1].Code)
	require.Equal(t, bridge.CodeOf(bridge.ErrNotFound), out.TxOutcomes[2].Code)
	requireOK(t, out.TxOutcomes[3])
	require.Empty(t, out.TxOutcomes[0].Events)
	require.Equal(t, types.SequenceID(1), types.QueryID(out.TxOutcomes[3].Data))
}

func TestHostchain_ClaimLifecycle(t *testing.T) {
	app := newApp(t, types.VariantClaim)
	payload := []byte("weather in lisbon")

	out := executeAndCommit(t, app, PostSplitTx(requester, 10, 7, payload))
	requireOK(t, out.TxOutcomes[0])
	id := types.QueryID(out.TxOutcomes[0].Data)
	require.Equal(t, types.ContentID(payload), id)

	out = executeAndCommit(t, app, ClaimTx(claimant, types.EligibilityProof{}, id))
	requireOK(t, out.TxOutcomes[0])

	reqLeaf := types.RequestLeaf(id, types.HashBytes(payload))
	reqRoot, path, index := rootWith(t, reqLeaf)
	block := types.BlockRef(types.HashBytes([]byte("oracle block 1")))
	out = executeAndCommit(t, app,
		HeaderTx(relayer, block, reqRoot, types.Hash{}),
		InclusionTx(claimant, types.InclusionReport{ID: id, Proof: types.MerkleProof{Path: path, Index: index, Block: block}}),
	)
	requireOK(t, out.TxOutcomes[0])
	requireOK(t, out.TxOutcomes[1])
	require.Equal(t, uint64(3), app.Bank().Balance(claimant).Uint64())

	result := []byte("sunny")
	tallyRoot, path, index := rootWith(t, types.TallyLeaf(reqLeaf, result))
	block2 := types.BlockRef(types.HashBytes([]byte("oracle block 2")))
	out = executeAndCommit(t, app,
		HeaderTx(relayer, block2, types.Hash{}, tallyRoot),
		ResultTx(claimant, types.ResultReport{
			ID:     id,
			Result: result,
			Proof:  &types.MerkleProof{Path: path, Index: index, Block: block2},
		}),
	)
	requireOK(t, out.TxOutcomes[0])
	requireOK(t, out.TxOutcomes[1])
	require.Equal(t, uint64(10), app.Bank().Balance(claimant).Uint64())

	var payout uint64
	queryValue(t, app, "/payout", claimant[:], &payout)
	require.Equal(t, uint64(10), payout)

	var balance uint64
	queryValue(t, app, "/balance", id[:], &balance)
	require.Zero(t, balance)
}

func TestHostchain_HeaderNeedsRelayer(t *testing.T) {
	app := newApp(t, types.VariantClaim)
	tx := HeaderTx(claimant, types.BlockRef{1}, types.Hash{1}, types.Hash{2})

	require.Equal(t, bridge.CodeOf(bridge.ErrUnauthorized), app.CheckTx(context.Background(), tx).Code)
	out := executeAndCommit(t, app, tx)
	require.Equal(t, bridge.CodeOf(bridge.ErrUnauthorized), out.TxOutcomes[0].Code)
}

func TestHostchain_CheckTx(t *testing.T) {
	direct := newApp(t, types.VariantDirect)
	ctx := context.Background()

	v := direct.CheckTx(ctx, PostTx(requester, 100, 1, []byte("q")))
	require.Zero(t, v.Code)
	require.Equal(t, requester, v.Sender)

	require.NotZero(t, direct.CheckTx(ctx, nil).Code)
	require.NotZero(t, direct.CheckTx(ctx, []byte("not cbor")).Code)
	require.Equal(t, bridge.CodeOf(bridge.ErrUnauthorized),
		direct.CheckTx(ctx, PostTx(types.Address{}, 100, 1, []byte("q"))).Code)
	require.Equal(t, bridge.CodeOf(bridge.ErrUnsupported),
		direct.CheckTx(ctx, ClaimTx(claimant, types.EligibilityProof{}, types.SequenceID(1))).Code)

	claim := newApp(t, types.VariantClaim)
	require.Zero(t, claim.CheckTx(ctx, ClaimTx(claimant, types.EligibilityProof{}, types.SequenceID(1))).Code)
}

func TestHostchain_ClaimOnDirectFails(t *testing.T) {
	app := newApp(t, types.VariantDirect)
	out := executeAndCommit(t, app, ClaimTx(claimant, types.EligibilityProof{}, types.SequenceID(1)))
	require.Equal(t, bridge.CodeOf(bridge.ErrUnsupported), out.TxOutcomes[0].Code)
}

func TestHostchain_BlockOrdering(t *testing.T) {
	app := newApp(t, types.VariantDirect)
	ctx := context.Background()

	_, err := app.ExecuteBlock(ctx, Block{Height: 2})
	require.Error(t, err)
	require.Error(t, app.Commit(ctx))

	_, err = app.ExecuteBlock(ctx, Block{Height: 1})
	require.NoError(t, err)
	_, err = app.ExecuteBlock(ctx, Block{Height: 2})
	require.Error(t, err, "previous block not committed")

	require.NoError(t, app.Commit(ctx))
	require.Equal(t, uint64(1), app.Height())
}

func TestHostchain_Deterministic(t *testing.T) {
	blocks := [][][]byte{
		{PostTx(requester, 100, 1, []byte("a")), PostTx(requester, 100, 1, []byte("b"))},
		{ResultTx(reporter, types.ResultReport{ID: types.SequenceID(2), ProofRef: types.Hash{9}, Result: []byte("r")})},
		{DeleteTx(requester, types.SequenceID(2)), UpgradeTx(requester, 5, 1, types.SequenceID(1))},
	}
	run := func() []types.Hash {
		app := newApp(t, types.VariantDirect)
		var hashes []types.Hash
		for _, txs := range blocks {
			out := executeAndCommit(t, app, txs...)
			hashes = append(hashes, out.AppHash)
		}
		require.Equal(t, hashes[len(hashes)-1], app.AppHash())
		return hashes
	}

	first, second := run(), run()
	require.Equal(t, first, second)
	require.NotEqual(t, first[0], first[1])
}

func TestHostchain_Query(t *testing.T) {
	app := newApp(t, types.VariantDirect)
	ctx := context.Background()
	id := types.SequenceID(1)

	var status string
	queryValue(t, app, "/status", id[:], &status)
	require.Equal(t, "Unknown", status)

	res := app.Query(ctx, "/request", id[:])
	require.Equal(t, bridge.CodeOf(bridge.ErrNotFound), res.Code)

	res = app.Query(ctx, "/status", []byte{1, 2})
	require.Equal(t, uint32(1), res.Code)

	res = app.Query(ctx, "/nope", id[:])
	require.Equal(t, uint32(1), res.Code)

	executeAndCommit(t, app, PostTx(requester, 100, 1, []byte("payload")))

	var req types.Request
	queryValue(t, app, "/request", id[:], &req)
	require.Equal(t, requester, req.Requester)
	require.Equal(t, uint64(100), req.Reward)
	require.Equal(t, uint64(1), req.PostedAt)

	var data []byte
	queryValue(t, app, "/payload", id[:], &data)
	require.Equal(t, []byte("payload"), data)
}

func TestDecodeTx(t *testing.T) {
	proof := &types.MerkleProof{Path: []types.Hash{{1}, {2}}, Index: 2, Block: types.BlockRef{7}}
	raw := ResultTx(claimant, types.ResultReport{ID: types.SequenceID(3), Result: []byte("r"), Proof: proof})

	tx, err := DecodeTx(raw)
	require.NoError(t, err)
	require.Equal(t, CallResult, tx.Call)
	require.Equal(t, claimant, tx.Sender)

	var body resultBody
	require.NoError(t, cbor.Unmarshal(tx.Body, &body))
	require.NotNil(t, body.Proof)
	require.Equal(t, *proof, toProof(*body.Proof))
	require.Equal(t, types.SequenceID(3), body.ID)

	// Same arguments, same bytes.
	require.Equal(t, raw, ResultTx(claimant, types.ResultReport{ID: types.SequenceID(3), Result: []byte("r"), Proof: proof}))

	bad, err := encMode.Marshal(Tx{Call: 99, Sender: claimant})
	require.NoError(t, err)
	_, err = DecodeTx(bad)
	require.Error(t, err)
}
