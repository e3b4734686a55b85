// Package bridge defines the public surface of a cross-chain oracle
// bridge: host-chain callers post data requests with an escrowed
// reward, resolvers prove inclusion and report results, and the
// escrow is released exactly once per reward leg.
//
// The core [Bridge] interface is shared by both lifecycle variants.
// The claim-based variant additionally exposes [Claimer], discovered
// via Go type assertion or [Connection.AsClaimer].
package bridge

import (
	"context"

	"github.com/blockberries/bridgeberry/types"
)

// Bridge is the externally callable facade.
//
// Every state-changing call is atomic: it either fully transitions
// the query or fails with no effect. Any value transfer it causes is
// performed after all state has been committed.
type Bridge interface {
	Reader

	// Post creates a query whose reward is the value attached to tx.
	// The value must cover the price floor tx.GasPrice times the
	// report cost estimate.
	Post(ctx context.Context, tx types.TxContext, req types.PostRequest) (types.QueryID, error)

	// UpgradeReward tops up the reward of an unresolved query, raising
	// its recorded gas price when tx carries a higher one.
	UpgradeReward(ctx context.Context, tx types.TxContext, id types.QueryID) error

	// ReportResult resolves a query and releases its result reward to
	// the sender.
	ReportResult(ctx context.Context, tx types.TxContext, report types.ResultReport) error

	// Delete erases a resolved query on behalf of its requester and
	// returns a copy of the final response.
	Delete(ctx context.Context, tx types.TxContext, id types.QueryID) (types.Response, error)
}

// Reader exposes read-only accessors. Reads of referenced payloads are
// integrity-checked against the digest recorded at post time.
type Reader interface {
	Status(ctx context.Context, id types.QueryID) (types.Status, error)
	ReadRequest(ctx context.Context, id types.QueryID) (types.Request, error)
	ReadPayload(ctx context.Context, id types.QueryID) ([]byte, error)
	ReadResponse(ctx context.Context, id types.QueryID) (types.Response, error)
	RewardBalance(ctx context.Context, id types.QueryID) (uint64, error)
	EstimateReward(ctx context.Context, gasPrice uint64) (uint64, error)
	QueryCount(ctx context.Context) (uint64, error)
	Variant() types.Variant
}

// Claimer is the claim-variant extension: resolvers reserve queries
// for a number of epochs and prove the request's inclusion on the
// external network before reporting.
type Claimer interface {
	// Claim reserves every id for the sender. All-or-nothing: if any id
	// is legitimately claimed by someone else, nothing is recorded.
	Claim(ctx context.Context, tx types.TxContext, ids []types.QueryID, proof types.EligibilityProof) error

	// ReportInclusion proves a claimed request against the requests
	// root of an external block and releases the inclusion reward to
	// the claimant.
	ReportInclusion(ctx context.Context, tx types.TxContext, report types.InclusionReport) error
}

// Connection represents a transport-agnostic connection to a bridge.
// Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Bridge

	// AsClaimer returns the Claimer interface if the bridge runs the
	// claim variant, or nil.
	AsClaimer() Claimer

	// Close terminates the connection.
	Close() error
}

// HeaderStore is the external store of oracle-network block headers.
// It is consulted only for merkle roots. Unknown blocks fail with
// ErrUnknownBlock.
type HeaderStore interface {
	RequestsRoot(ctx context.Context, block types.BlockRef) (types.Hash, error)
	TalliesRoot(ctx context.Context, block types.BlockRef) (types.Hash, error)
}

// Bank moves value out of the bridge's custody. A transfer is
// all-or-nothing.
type Bank interface {
	Transfer(ctx context.Context, to types.Address, amount uint64) error
}

// ReporterSet is the access-control list of identities allowed to
// report results in the direct variant.
type ReporterSet interface {
	IsReporter(ctx context.Context, who types.Address) (bool, error)
}

// PayloadStore resolves payload references to their current bytes.
type PayloadStore interface {
	Fetch(ctx context.Context, ref types.PayloadRef) ([]byte, error)
}

// Eligibility decides whether a claimant may claim in an epoch.
// Returning an error rejects the whole claim.
type Eligibility interface {
	CheckEligibility(ctx context.Context, claimant types.Address, proof types.EligibilityProof, epoch uint64) error
}

// EventSink receives the notifications emitted by state-changing
// operations, in commit order.
type EventSink interface {
	Emit(types.Event)
}
