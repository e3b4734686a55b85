package bridgegrpc

import "github.com/blockberries/bridgeberry/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// Empty is the request or response of calls without parameters or
// results.
type Empty struct{}

// PostRequest wraps the parameters of Bridge.Post.
type PostRequest struct {
	Tx      types.TxContext   `cramberry:"1"`
	Request types.PostRequest `cramberry:"2"`
}

// PostResponse carries the id of the new query.
type PostResponse struct {
	ID types.QueryID `cramberry:"1"`
}

// TxQueryRequest wraps calls that take a transaction and a query id:
// UpgradeReward and Delete.
type TxQueryRequest struct {
	Tx types.TxContext `cramberry:"1"`
	ID types.QueryID   `cramberry:"2"`
}

// ClaimRequest wraps the parameters of Claimer.Claim.
type ClaimRequest struct {
	Tx    types.TxContext        `cramberry:"1"`
	IDs   []types.QueryID        `cramberry:"2"`
	Proof types.EligibilityProof `cramberry:"3"`
}

// ReportInclusionRequest wraps the parameters of Claimer.ReportInclusion.
type ReportInclusionRequest struct {
	Tx     types.TxContext       `cramberry:"1"`
	Report types.InclusionReport `cramberry:"2"`
}

// ReportResultRequest wraps the parameters of Bridge.ReportResult.
type ReportResultRequest struct {
	Tx     types.TxContext    `cramberry:"1"`
	Report types.ResultReport `cramberry:"2"`
}

// RecordHeaderRequest carries the roots of an external block sent by
// a relayer.
type RecordHeaderRequest struct {
	Relayer  types.Address  `cramberry:"1"`
	Block    types.BlockRef `cramberry:"2"`
	Requests types.Hash     `cramberry:"3"`
	Tallies  types.Hash     `cramberry:"4"`
}

// QueryRequest names the query a read applies to.
type QueryRequest struct {
	ID types.QueryID `cramberry:"1"`
}

// StatusResponse wraps the return value of Reader.Status.
type StatusResponse struct {
	Status types.Status `cramberry:"1"`
}

// PayloadResponse wraps the return value of Reader.ReadPayload.
type PayloadResponse struct {
	Payload []byte `cramberry:"1"`
}

// EstimateRequest wraps the parameter of Reader.EstimateReward.
type EstimateRequest struct {
	GasPrice uint64 `cramberry:"1"`
}

// AmountResponse carries a single counter or amount.
type AmountResponse struct {
	Amount uint64 `cramberry:"1"`
}

// InfoResponse describes the remote bridge.
type InfoResponse struct {
	Variant types.Variant `cramberry:"1"`
}
