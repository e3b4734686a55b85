package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

var all = []types.Status{
	types.StatusUnknown, types.StatusPosted, types.StatusClaimed,
	types.StatusIncluded, types.StatusReported, types.StatusRemoved,
}

func TestDirectTable(t *testing.T) {
	m := New(types.VariantDirect, 0)
	id := types.SequenceID(1)

	assert.False(t, m.Supports(OpClaim))
	assert.False(t, m.Supports(OpReportInclusion))
	assert.ErrorIs(t, m.Require(OpClaim, id, types.StatusPosted), bridge.ErrUnsupported)

	allowed := map[Op]types.Status{
		OpPost:          types.StatusUnknown,
		OpUpgradeReward: types.StatusPosted,
		OpReportResult:  types.StatusPosted,
		OpDelete:        types.StatusReported,
	}
	for op, from := range allowed {
		for _, s := range all {
			err := m.Require(op, id, s)
			switch {
			case s == from:
				assert.NoError(t, err, "%s from %s", op, s)
			case s == types.StatusUnknown:
				assert.ErrorIs(t, err, bridge.ErrNotFound, "%s from %s", op, s)
			default:
				ws, ok := bridge.AsWrongStatus(err)
				require.True(t, ok, "%s from %s: %v", op, s, err)
				assert.Equal(t, s, ws.Actual)
				assert.Equal(t, []types.Status{from}, ws.Expected)
			}
		}
	}

	assert.Equal(t, types.StatusPosted, m.Next(OpPost, types.StatusUnknown))
	assert.Equal(t, types.StatusReported, m.Next(OpReportResult, types.StatusPosted))
	assert.Equal(t, types.StatusRemoved, m.Next(OpDelete, types.StatusReported))
}

func TestClaimTable(t *testing.T) {
	m := New(types.VariantClaim, 0)
	id := types.ContentID([]byte("payload"))

	for _, op := range Ops {
		assert.True(t, m.Supports(op), op.String())
	}

	require.NoError(t, m.Require(OpClaim, id, types.StatusPosted))
	require.NoError(t, m.Require(OpReportInclusion, id, types.StatusClaimed))
	require.NoError(t, m.Require(OpReportResult, id, types.StatusIncluded))

	err := m.Require(OpReportResult, id, types.StatusClaimed)
	ws, ok := bridge.AsWrongStatus(err)
	require.True(t, ok)
	assert.Equal(t, []types.Status{types.StatusIncluded}, ws.Expected)

	// A content id that already exists cannot be posted again.
	err = m.Require(OpPost, id, types.StatusPosted)
	ws, ok = bridge.AsWrongStatus(err)
	require.True(t, ok)
	assert.Equal(t, []types.Status{types.StatusUnknown}, ws.Expected)

	for _, s := range []types.Status{types.StatusPosted, types.StatusClaimed, types.StatusIncluded} {
		assert.NoError(t, m.Require(OpUpgradeReward, id, s))
		assert.Equal(t, s, m.Next(OpUpgradeReward, s))
	}
	assert.ErrorIs(t, m.Require(OpUpgradeReward, id, types.StatusReported), bridge.ErrWrongStatus)
}

func TestClaimWindow(t *testing.T) {
	m := New(types.VariantClaim, 10)
	assert.Equal(t, uint64(10), m.ClaimExpiry())
	assert.Equal(t, uint64(DefaultClaimExpiry), New(types.VariantClaim, 0).ClaimExpiry())

	id := types.ContentID([]byte("x"))
	q := &types.Query{ID: id, Request: types.Request{Requester: types.Address{1}}}
	assert.True(t, m.ClaimFree(q, 0))
	require.NoError(t, Check(m.Claimable(id, q, 0)))

	q.Claim = types.Claim{Claimant: types.Address{2}, Epoch: 100}
	assert.False(t, m.ClaimFree(q, 100))
	assert.False(t, m.ClaimFree(q, 109))
	assert.True(t, m.ClaimFree(q, 110))
	// A height before the claim epoch never frees it.
	assert.False(t, m.ClaimFree(q, 50))

	err := Check(m.Claimable(id, q, 105))
	ws, ok := bridge.AsWrongStatus(err)
	require.True(t, ok)
	assert.Equal(t, types.StatusClaimed, ws.Actual)
	require.NoError(t, Check(m.Claimable(id, q, 110)))

	q.InclusionHash = types.Hash{1}
	assert.ErrorIs(t, Check(m.Claimable(id, q, 500)), bridge.ErrWrongStatus)
}

func TestCheckOrder(t *testing.T) {
	var ran []int
	first := errors.New("first")
	err := Check(
		func() error { ran = append(ran, 1); return nil },
		func() error { ran = append(ran, 2); return first },
		func() error { ran = append(ran, 3); return nil },
	)
	assert.Same(t, first, err)
	assert.Equal(t, []int{1, 2}, ran)
}

func TestInStatus(t *testing.T) {
	m := New(types.VariantDirect, 0)
	id := types.SequenceID(4)
	assert.NoError(t, Check(m.InStatus(OpDelete, id, types.StatusReported)))
	ws, ok := bridge.AsWrongStatus(Check(m.InStatus(OpDelete, id, types.StatusRemoved)))
	require.True(t, ok)
	assert.Equal(t, types.StatusRemoved, ws.Actual)
}

func TestRequesterIs(t *testing.T) {
	q := &types.Query{ID: types.SequenceID(1), Request: types.Request{Requester: types.Address{1}}}
	assert.NoError(t, RequesterIs(q, types.Address{1})())
	assert.ErrorIs(t, RequesterIs(q, types.Address{2})(), bridge.ErrUnauthorized)
}

func TestNonEmptyResult(t *testing.T) {
	ok := types.ResultReport{ID: types.SequenceID(1), ProofRef: types.Hash{1}, Result: []byte{1}}
	assert.NoError(t, NonEmptyResult(ok)())

	noResult := ok
	noResult.Result = nil
	assert.ErrorIs(t, NonEmptyResult(noResult)(), bridge.ErrEmptyResult)

	noRef := ok
	noRef.ProofRef = types.Hash{}
	assert.ErrorIs(t, NonEmptyResult(noRef)(), bridge.ErrEmptyResult)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "report_inclusion", OpReportInclusion.String())
	assert.Equal(t, "op(99)", Op(99).String())
}
