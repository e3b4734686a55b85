package types

import "fmt"

// Status is the lifecycle status of a query. It is derived from which
// record fields are populated and never stored.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPosted
	StatusClaimed
	StatusIncluded
	StatusReported
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusPosted:
		return "Posted"
	case StatusClaimed:
		return "Claimed"
	case StatusIncluded:
		return "Included"
	case StatusReported:
		return "Reported"
	case StatusRemoved:
		return "Removed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Request is the requester-side half of a query.
type Request struct {
	Requester Address `cramberry:"1"`
	// Inline payload. Empty when the payload is held by reference.
	Payload []byte `cramberry:"2"`
	// Reference into the payload store. Empty when the payload is inline.
	Ref PayloadRef `cramberry:"3"`
	// SHA2-256 digest of the payload bytes at post time.
	Digest   Hash   `cramberry:"4"`
	GasPrice uint64 `cramberry:"5"`
	// Escrowed result-side reward. Zero once released.
	Reward uint64 `cramberry:"6"`
	// Escrowed posting-side reward (claim variant). Zero once released.
	InclusionReward uint64 `cramberry:"7"`
	PostedAt        uint64 `cramberry:"8"`
}

// Response is the resolver-side half of a query.
type Response struct {
	Reporter Address `cramberry:"1"`
	Result   []byte  `cramberry:"2"`
	// Transaction hash (direct variant) or tally leaf hash (claim variant).
	ProofRef  Hash   `cramberry:"3"`
	Timestamp uint64 `cramberry:"4"`
	// Amount released to the reporter when the response was recorded.
	Paid uint64 `cramberry:"5"`
}

// Claim records which resolver reserved a query and when.
type Claim struct {
	Claimant Address `cramberry:"1"`
	Epoch    uint64  `cramberry:"2"`
}

// Query is the record the query store keeps per identifier.
type Query struct {
	ID       QueryID  `cramberry:"1"`
	Request  Request  `cramberry:"2"`
	Response Response `cramberry:"3"`
	Claim    Claim    `cramberry:"4"`
	// Leaf hash proven against the external requests root.
	InclusionHash Hash `cramberry:"5"`
}

// Status derives the lifecycle status from the populated fields.
// A nil record is Unknown.
func (q *Query) Status() Status {
	switch {
	case q == nil || q.Request.Requester.IsZero():
		return StatusUnknown
	case !q.Response.ProofRef.IsZero():
		return StatusReported
	case !q.InclusionHash.IsZero():
		return StatusIncluded
	case !q.Claim.Claimant.IsZero():
		return StatusClaimed
	default:
		return StatusPosted
	}
}

// Balance returns the total value still escrowed for the query.
func (q *Query) Balance() uint64 {
	return q.Request.Reward + q.Request.InclusionReward
}

// Clone returns a deep copy of the record.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	c := *q
	c.Request.Payload = cloneBytes(q.Request.Payload)
	c.Response.Result = cloneBytes(q.Response.Result)
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
