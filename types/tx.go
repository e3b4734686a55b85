package types

// TxContext is the environment a state-changing call executes in: who
// sends it, what value is attached, the price per unit of work and the
// host block it lands in.
type TxContext struct {
	Sender   Address `cramberry:"1"`
	Value    uint64  `cramberry:"2"`
	GasPrice uint64  `cramberry:"3"`
	// Host block height. Used as the epoch for claim expiry.
	Height uint64    `cramberry:"4"`
	Time   Timestamp `cramberry:"5"`
}

// PostRequest carries the payload of a new query. Exactly one of
// Payload and Ref must be set.
type PostRequest struct {
	Payload []byte     `cramberry:"1"`
	Ref     PayloadRef `cramberry:"2"`
	// Claim variant only: the share of the attached value reserved for
	// the result reporter. The remainder rewards the inclusion proof.
	ResultReward uint64 `cramberry:"3"`
}

// MerkleProof is a sibling path plus left/right index against the root
// recorded for an external block.
type MerkleProof struct {
	Path  []Hash   `cramberry:"1"`
	Index uint64   `cramberry:"2"`
	Block BlockRef `cramberry:"3"`
}

// InclusionReport proves a claimed request was included in an external
// block.
type InclusionReport struct {
	ID    QueryID     `cramberry:"1"`
	Proof MerkleProof `cramberry:"2"`
}

// ResultReport resolves a query.
type ResultReport struct {
	ID QueryID `cramberry:"1"`
	// Transaction hash of the resolution on the external network. Required
	// by the direct variant; the claim variant records the tally leaf.
	ProofRef Hash   `cramberry:"2"`
	Result   []byte `cramberry:"3"`
	// Epoch at which the result was solved. Zero means the host height.
	Timestamp uint64 `cramberry:"4"`
	// Claim variant only: tally inclusion proof.
	Proof *MerkleProof `cramberry:"5"`
}

// EligibilityProof is the evidence a claimant presents to show it may
// claim queries in the current epoch.
type EligibilityProof struct {
	PublicKey []byte `cramberry:"1"`
	Proof     []byte `cramberry:"2"`
}
