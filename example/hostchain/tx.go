package hostchain

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/blockberries/bridgeberry/types"
)

// Call selects the bridge operation a transaction invokes.
type Call uint8

const (
	CallPost Call = iota + 1
	CallUpgrade
	CallClaim
	CallInclusion
	CallResult
	CallDelete
	// CallHeader records external block roots. Relayers only.
	CallHeader
)

func (c Call) String() string {
	switch c {
	case CallPost:
		return "post"
	case CallUpgrade:
		return "upgrade"
	case CallClaim:
		return "claim"
	case CallInclusion:
		return "inclusion"
	case CallResult:
		return "result"
	case CallDelete:
		return "delete"
	case CallHeader:
		return "header"
	default:
		return fmt.Sprintf("call(%d)", uint8(c))
	}
}

// Tx is the envelope of every host transaction. Body holds the
// call-specific arguments.
type Tx struct {
	_        struct{} `cbor:",toarray"`
	Call     Call
	Sender   types.Address
	Value    uint64
	GasPrice uint64
	Body     cbor.RawMessage
}

type postBody struct {
	_            struct{} `cbor:",toarray"`
	Payload      []byte
	Ref          string
	ResultReward uint64
}

type idBody struct {
	_  struct{} `cbor:",toarray"`
	ID types.QueryID
}

type claimBody struct {
	_         struct{} `cbor:",toarray"`
	IDs       []types.QueryID
	PublicKey []byte
	Proof     []byte
}

type proofBody struct {
	_     struct{} `cbor:",toarray"`
	Path  []types.Hash
	Index uint64
	Block types.BlockRef
}

type inclusionBody struct {
	_     struct{} `cbor:",toarray"`
	ID    types.QueryID
	Proof proofBody
}

type resultBody struct {
	_         struct{} `cbor:",toarray"`
	ID        types.QueryID
	ProofRef  types.Hash
	Result    []byte
	Timestamp uint64
	Proof     *proofBody
}

type headerBody struct {
	_        struct{} `cbor:",toarray"`
	Block    types.BlockRef
	Requests types.Hash
	Tallies  types.Hash
}

// Map keys are sorted so equal transactions encode to equal bytes.
var encMode cbor.EncMode

func init() {
	em, err := cbor.EncOptions{Sort: cbor.SortCoreDeterministic}.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// DecodeTx parses a raw transaction envelope.
func DecodeTx(raw []byte) (Tx, error) {
	var tx Tx
	if len(raw) == 0 {
		return tx, fmt.Errorf("empty transaction")
	}
	if err := cbor.Unmarshal(raw, &tx); err != nil {
		return tx, fmt.Errorf("decode tx: %w", err)
	}
	if tx.Call < CallPost || tx.Call > CallHeader {
		return tx, fmt.Errorf("unknown call %s", tx.Call)
	}
	return tx, nil
}

func encodeTx(call Call, sender types.Address, value, gasPrice uint64, body any) []byte {
	b, err := encMode.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("encode %s body: %v", call, err))
	}
	raw, err := encMode.Marshal(Tx{Call: call, Sender: sender, Value: value, GasPrice: gasPrice, Body: b})
	if err != nil {
		panic(fmt.Sprintf("encode %s tx: %v", call, err))
	}
	return raw
}

func toProof(p proofBody) types.MerkleProof {
	return types.MerkleProof{Path: p.Path, Index: p.Index, Block: p.Block}
}

func fromProof(p types.MerkleProof) proofBody {
	return proofBody{Path: p.Path, Index: p.Index, Block: p.Block}
}

// ---------------------------------------------------------------------------
// Tx builders
// ---------------------------------------------------------------------------

// PostTx posts an inline payload with value attached.
func PostTx(sender types.Address, value, gasPrice uint64, payload []byte) []byte {
	return encodeTx(CallPost, sender, value, gasPrice, postBody{Payload: payload})
}

// PostRefTx posts a payload held by reference.
func PostRefTx(sender types.Address, value, gasPrice uint64, ref types.PayloadRef) []byte {
	return encodeTx(CallPost, sender, value, gasPrice, postBody{Ref: string(ref)})
}

// PostSplitTx posts into a claim-variant bridge, reserving resultReward
// of value for the result reporter.
func PostSplitTx(sender types.Address, value, resultReward uint64, payload []byte) []byte {
	return encodeTx(CallPost, sender, value, 0, postBody{Payload: payload, ResultReward: resultReward})
}

// UpgradeTx tops up the reward of id.
func UpgradeTx(sender types.Address, value, gasPrice uint64, id types.QueryID) []byte {
	return encodeTx(CallUpgrade, sender, value, gasPrice, idBody{ID: id})
}

// ClaimTx reserves ids for sender.
func ClaimTx(sender types.Address, proof types.EligibilityProof, ids ...types.QueryID) []byte {
	return encodeTx(CallClaim, sender, 0, 0, claimBody{IDs: ids, PublicKey: proof.PublicKey, Proof: proof.Proof})
}

// InclusionTx proves a claimed request against an external block.
func InclusionTx(sender types.Address, report types.InclusionReport) []byte {
	return encodeTx(CallInclusion, sender, 0, 0, inclusionBody{ID: report.ID, Proof: fromProof(report.Proof)})
}

// ResultTx resolves a query.
func ResultTx(sender types.Address, report types.ResultReport) []byte {
	body := resultBody{
		ID:        report.ID,
		ProofRef:  report.ProofRef,
		Result:    report.Result,
		Timestamp: report.Timestamp,
	}
	if report.Proof != nil {
		p := fromProof(*report.Proof)
		body.Proof = &p
	}
	return encodeTx(CallResult, sender, 0, 0, body)
}

// DeleteTx erases a resolved query.
func DeleteTx(sender types.Address, id types.QueryID) []byte {
	return encodeTx(CallDelete, sender, 0, 0, idBody{ID: id})
}

// HeaderTx records the merkle roots of an external block.
func HeaderTx(relayer types.Address, block types.BlockRef, requestsRoot, talliesRoot types.Hash) []byte {
	return encodeTx(CallHeader, relayer, 0, 0, headerBody{Block: block, Requests: requestsRoot, Tallies: talliesRoot})
}

// TestAddress returns a deterministic address for tests.
func TestAddress(n byte) types.Address {
	var a types.Address
	a[0] = n
	a[types.AddressSize-1] = n
	return a
}
