// Package escrow tracks the reward value attached to each query and
// authorizes its release exactly once per reward leg.
//
// The ledger never moves value itself. Release zeroes the leg balance
// on the staged record and returns a Payout that the caller executes
// only after the record has been committed.
package escrow

import (
	stdmath "math"

	sdkmath "cosmossdk.io/math"
	errorsmod "cosmossdk.io/errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// DefaultReportGasEstimate is the fixed cost, in units of work, of
// reporting a result.
const DefaultReportGasEstimate = 102_496

// Leg names one of the independently released reward balances of a
// query.
type Leg uint8

const (
	// LegResult is paid to the reporter of the result.
	LegResult Leg = iota
	// LegInclusion is paid to the claimant once the request's inclusion
	// on the external network is proven (claim variant).
	LegInclusion
)

func (l Leg) String() string {
	if l == LegInclusion {
		return "inclusion"
	}
	return "result"
}

// Payout is a deferred value transfer produced by Release.
type Payout struct {
	ID     types.QueryID
	Leg    Leg
	To     types.Address
	Amount uint64
}

// Params configures the price floor.
type Params struct {
	ReportGasEstimate uint64
}

// DefaultParams returns the default ledger parameters.
func DefaultParams() Params {
	return Params{ReportGasEstimate: DefaultReportGasEstimate}
}

// Ledger applies escrow rules to query records.
type Ledger struct {
	params Params
}

// New creates a ledger.
func New(params Params) *Ledger {
	if params.ReportGasEstimate == 0 {
		params.ReportGasEstimate = DefaultReportGasEstimate
	}
	return &Ledger{params: params}
}

// Params returns the ledger parameters.
func (l *Ledger) Params() Params { return l.params }

var maxAmount = sdkmath.NewUint(stdmath.MaxUint64)

// PriceFloor returns the minimum reward for the given gas price.
func (l *Ledger) PriceFloor(gasPrice uint64) (uint64, error) {
	floor := sdkmath.NewUint(gasPrice).MulUint64(l.params.ReportGasEstimate)
	if floor.GT(maxAmount) {
		return 0, errorsmod.Wrapf(bridge.ErrOverflow, "price floor for gas price %d", gasPrice)
	}
	return floor.Uint64(), nil
}

// Open escrows the value attached to a new query. In the claim variant
// resultReward of the value is reserved for the result reporter and the
// rest rewards the inclusion proof; otherwise all of it is the result
// reward.
func (l *Ledger) Open(q *types.Query, tx types.TxContext, variant types.Variant, resultReward uint64) error {
	floor, err := l.PriceFloor(tx.GasPrice)
	if err != nil {
		return err
	}
	if tx.Value < floor {
		return errorsmod.Wrapf(bridge.ErrInsufficientValue, "attached %d, floor %d", tx.Value, floor)
	}

	q.Request.GasPrice = tx.GasPrice
	if !variant.HasClaims() {
		q.Request.Reward = tx.Value
		return nil
	}
	if resultReward > tx.Value {
		return errorsmod.Wrapf(bridge.ErrInsufficientValue, "result reward %d exceeds attached %d", resultReward, tx.Value)
	}
	q.Request.Reward = resultReward
	q.Request.InclusionReward = tx.Value - resultReward
	return nil
}

// TopUp adds the value attached to tx to the result reward, raising the
// recorded gas price first when tx carries a higher one, and validates
// the new total against the new floor.
func (l *Ledger) TopUp(q *types.Query, tx types.TxContext) error {
	gasPrice := q.Request.GasPrice
	if tx.GasPrice > gasPrice {
		gasPrice = tx.GasPrice
	}
	floor, err := l.PriceFloor(gasPrice)
	if err != nil {
		return err
	}

	reward := sdkmath.NewUint(q.Request.Reward).AddUint64(tx.Value)
	total := reward.AddUint64(q.Request.InclusionReward)
	if total.GT(maxAmount) {
		return errorsmod.Wrapf(bridge.ErrOverflow, "reward of %s", q.ID)
	}
	if total.LT(sdkmath.NewUint(floor)) {
		return errorsmod.Wrapf(bridge.ErrInsufficientValue, "total %s, floor %d", total, floor)
	}

	q.Request.GasPrice = gasPrice
	q.Request.Reward = reward.Uint64()
	return nil
}

// Release zeroes the leg balance of q and returns the payout for it.
// A leg is released at most once; whether it already was is read from
// the lifecycle status of q, which callers must not yet have advanced.
func (l *Ledger) Release(q *types.Query, leg Leg, to types.Address) (Payout, error) {
	status := q.Status()
	switch status {
	case types.StatusUnknown, types.StatusRemoved:
		return Payout{}, errorsmod.Wrapf(bridge.ErrNotFound, "query %s", q.ID)
	case types.StatusReported:
		return Payout{}, errorsmod.Wrapf(bridge.ErrAlreadyReleased, "%s reward of %s", leg, q.ID)
	case types.StatusIncluded:
		if leg == LegInclusion {
			return Payout{}, errorsmod.Wrapf(bridge.ErrAlreadyReleased, "%s reward of %s", leg, q.ID)
		}
	}

	p := Payout{ID: q.ID, Leg: leg, To: to}
	switch leg {
	case LegInclusion:
		p.Amount = q.Request.InclusionReward
		q.Request.InclusionReward = 0
	default:
		p.Amount = q.Request.Reward
		q.Request.Reward = 0
	}
	return p, nil
}
