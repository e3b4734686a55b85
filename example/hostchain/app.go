// Package hostchain is a minimal host blockchain that embeds the
// bridge. It executes blocks of CBOR-encoded transactions, each one a
// call into the bridge facade, and seals every block with an app hash
// chained over the transactions and their result codes.
//
// Transaction format: a CBOR array [call, sender, value, gasPrice, body]
// where body is the CBOR array of the call's arguments. See the *Tx
// builders for every call.
//
// Bridge state is written as transactions execute. Commit only seals
// the block; there is no rollback of an executed block.
package hostchain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/fxamacker/cbor/v2"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/bank"
	"github.com/blockberries/bridgeberry/headers"
	"github.com/blockberries/bridgeberry/local"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// Config configures an App.
type Config struct {
	Params server.Params
	// Query store. Defaults to an in-memory store. The app owns it.
	Store store.Store
	// Identities allowed to report results (direct variant).
	Reporters []types.Address
	// Identities allowed to record external block headers.
	Relayers    []types.Address
	Payloads    bridge.PayloadStore
	Eligibility bridge.Eligibility
	Logger      *logging.Logger
}

// Block is a finalized block of host transactions.
type Block struct {
	Height uint64
	Time   time.Time
	Txs    [][]byte
}

// TxOutcome is the result of executing one transaction. Code is the
// bridge error code, zero on success.
type TxOutcome struct {
	Index  uint32
	Code   uint32
	Info   string
	Data   []byte
	Events []types.Event
}

// OK reports whether the transaction succeeded.
func (o TxOutcome) OK() bool { return o.Code == 0 }

// BlockOutcome is the result of executing a block.
type BlockOutcome struct {
	TxOutcomes []TxOutcome
	AppHash    types.Hash
}

// Verdict is the mempool admission decision for a transaction.
type Verdict struct {
	Code   uint32
	Info   string
	Sender types.Address
}

// QueryResult is the answer to a state query. Value is CBOR-encoded.
type QueryResult struct {
	Code   uint32
	Info   string
	Value  []byte
	Height uint64
}

// App is a host chain running one bridge.
type App struct {
	mu sync.Mutex

	conn     *local.Connection
	bank     *bank.Memory
	headers  *headers.Memory
	reporter *reporterSet
	relayers map[types.Address]bool
	log      *logging.Logger

	// Events emitted by the transaction being executed.
	pending []types.Event

	height  uint64
	appHash types.Hash
	staged  *BlockOutcome
	stagedH uint64
}

var _ bridge.EventSink = (*App)(nil)

// New creates a host chain at height zero.
func New(cfg Config) (*App, error) {
	st := cfg.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	app := &App{
		bank:     bank.NewMemory(),
		headers:  headers.NewMemory(),
		reporter: newReporterSet(cfg.Reporters),
		relayers: make(map[types.Address]bool, len(cfg.Relayers)),
		log:      log.WithComponent("hostchain"),
	}
	for _, r := range cfg.Relayers {
		app.relayers[r] = true
	}
	conn, err := local.NewConnection(server.Config{
		Params:      cfg.Params,
		Store:       st,
		Bank:        app.bank,
		Headers:     app.headers,
		Reporters:   app.reporter,
		Payloads:    cfg.Payloads,
		Eligibility: cfg.Eligibility,
		Events:      app,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	app.conn = conn
	return app, nil
}

// Emit buffers a bridge event for the transaction being executed.
func (app *App) Emit(ev types.Event) {
	app.pending = append(app.pending, ev)
}

// Bridge returns the embedded bridge connection for read access.
func (app *App) Bridge() bridge.Connection { return app.conn }

// Bank returns the ledger rewards are paid into.
func (app *App) Bank() *bank.Memory { return app.bank }

// Height returns the last committed height.
func (app *App) Height() uint64 {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.height
}

// AppHash returns the last committed app hash.
func (app *App) AppHash() types.Hash {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.appHash
}

// Close shuts the bridge down and closes the query store.
func (app *App) Close() error {
	return app.conn.Close()
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// CheckTx decodes tx and rejects what can never execute.
func (app *App) CheckTx(_ context.Context, raw []byte) Verdict {
	tx, err := DecodeTx(raw)
	if err != nil {
		return Verdict{Code: 1, Info: err.Error()}
	}
	if tx.Sender.IsZero() {
		return Verdict{Code: bridge.CodeOf(bridge.ErrUnauthorized), Info: "zero sender"}
	}
	switch tx.Call {
	case CallHeader:
		if !app.relayers[tx.Sender] {
			return Verdict{Code: bridge.CodeOf(bridge.ErrUnauthorized), Info: "sender is not a relayer"}
		}
	case CallClaim, CallInclusion:
		if app.conn.AsClaimer() == nil {
			return Verdict{Code: bridge.CodeOf(bridge.ErrUnsupported), Info: fmt.Sprintf("%s needs the claim variant", tx.Call)}
		}
	}
	return Verdict{Sender: tx.Sender}
}

// ExecuteBlock runs every transaction of block in order. Heights must
// follow the last committed one, and the previous block must be
// committed first.
func (app *App) ExecuteBlock(ctx context.Context, block Block) (BlockOutcome, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.staged != nil {
		return BlockOutcome{}, fmt.Errorf("block %d executed but not committed", app.stagedH)
	}
	if block.Height != app.height+1 {
		return BlockOutcome{}, fmt.Errorf("unexpected height %d, last committed %d", block.Height, app.height)
	}

	h := sha256.New()
	h.Write(app.appHash[:])
	h.Write(encodeUint64(block.Height))

	outcomes := make([]TxOutcome, len(block.Txs))
	for i, raw := range block.Txs {
		outcome := app.executeTx(ctx, block, uint32(i), raw)
		outcomes[i] = outcome

		sum := sha256.Sum256(raw)
		h.Write(sum[:])
		h.Write(encodeUint64(uint64(outcome.Code)))
		h.Write(outcome.Data)
	}

	out := BlockOutcome{TxOutcomes: outcomes}
	h.Sum(out.AppHash[:0])
	app.staged = &out
	app.stagedH = block.Height
	return out, nil
}

// Commit seals the executed block.
func (app *App) Commit(_ context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.staged == nil {
		return fmt.Errorf("nothing to commit")
	}
	app.height = app.stagedH
	app.appHash = app.staged.AppHash
	app.staged = nil
	app.log.Debug("committed block", logging.Height(app.height), "app_hash", app.appHash.String())
	return nil
}

// Query answers read-only questions about bridge state:
//
//	/status, /request, /payload, /response, /balance  Data = query id
//	/count                                            Data unused
//	/payout                                           Data = address
func (app *App) Query(ctx context.Context, path string, data []byte) QueryResult {
	height := app.Height()
	value, err := app.query(ctx, path, data)
	if err != nil {
		return QueryResult{Code: bridge.CodeOf(err), Info: err.Error(), Height: height}
	}
	b, err := encMode.Marshal(value)
	if err != nil {
		return QueryResult{Code: 1, Info: err.Error(), Height: height}
	}
	return QueryResult{Value: b, Height: height}
}

func (app *App) query(ctx context.Context, path string, data []byte) (any, error) {
	switch path {
	case "/count":
		return app.conn.QueryCount(ctx)
	case "/payout":
		if len(data) != types.AddressSize {
			return nil, fmt.Errorf("data must be a %d-byte address", types.AddressSize)
		}
		return app.bank.Balance(types.Address(data)).Uint64(), nil
	}

	if len(data) != types.HashSize {
		return nil, fmt.Errorf("data must be a %d-byte query id", types.HashSize)
	}
	id := types.QueryID(data)
	switch path {
	case "/status":
		st, err := app.conn.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		return st.String(), nil
	case "/request":
		return app.conn.ReadRequest(ctx, id)
	case "/payload":
		return app.conn.ReadPayload(ctx, id)
	case "/response":
		return app.conn.ReadResponse(ctx, id)
	case "/balance":
		return app.conn.RewardBalance(ctx, id)
	default:
		return nil, fmt.Errorf("unknown query path %q", path)
	}
}

// ---------------------------------------------------------------------------
// Tx execution
// ---------------------------------------------------------------------------

func (app *App) executeTx(ctx context.Context, block Block, index uint32, raw []byte) TxOutcome {
	app.pending = nil
	tx, err := DecodeTx(raw)
	if err != nil {
		return TxOutcome{Index: index, Code: 1, Info: err.Error()}
	}
	txc := types.TxContext{
		Sender:   tx.Sender,
		Value:    tx.Value,
		GasPrice: tx.GasPrice,
		Height:   block.Height,
		Time:     types.TimeToTimestamp(block.Time),
	}

	data, err := app.dispatch(ctx, tx, txc)
	if err != nil {
		app.log.Debug("tx failed", "height", block.Height, "index", index, "call", tx.Call, logging.Error(err))
		return TxOutcome{Index: index, Code: bridge.CodeOf(err), Info: err.Error()}
	}
	outcome := TxOutcome{Index: index, Data: data, Events: app.pending}
	app.pending = nil
	return outcome
}

func (app *App) dispatch(ctx context.Context, tx Tx, txc types.TxContext) ([]byte, error) {
	switch tx.Call {
	case CallPost:
		var body postBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		id, err := app.conn.Post(ctx, txc, types.PostRequest{
			Payload:      body.Payload,
			Ref:          types.PayloadRef(body.Ref),
			ResultReward: body.ResultReward,
		})
		if err != nil {
			return nil, err
		}
		return id[:], nil

	case CallUpgrade:
		var body idBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode upgrade: %w", err)
		}
		return nil, app.conn.UpgradeReward(ctx, txc, body.ID)

	case CallClaim:
		var body claimBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		c, err := app.claimer()
		if err != nil {
			return nil, err
		}
		return nil, c.Claim(ctx, txc, body.IDs, types.EligibilityProof{PublicKey: body.PublicKey, Proof: body.Proof})

	case CallInclusion:
		var body inclusionBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode inclusion: %w", err)
		}
		c, err := app.claimer()
		if err != nil {
			return nil, err
		}
		return nil, c.ReportInclusion(ctx, txc, types.InclusionReport{ID: body.ID, Proof: toProof(body.Proof)})

	case CallResult:
		var body resultBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		report := types.ResultReport{
			ID:        body.ID,
			ProofRef:  body.ProofRef,
			Result:    body.Result,
			Timestamp: body.Timestamp,
		}
		if body.Proof != nil {
			p := toProof(*body.Proof)
			report.Proof = &p
		}
		return nil, app.conn.ReportResult(ctx, txc, report)

	case CallDelete:
		var body idBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode delete: %w", err)
		}
		resp, err := app.conn.Delete(ctx, txc, body.ID)
		if err != nil {
			return nil, err
		}
		return encMode.Marshal(resp)

	case CallHeader:
		var body headerBody
		if err := cbor.Unmarshal(tx.Body, &body); err != nil {
			return nil, fmt.Errorf("decode header: %w", err)
		}
		if !app.relayers[tx.Sender] {
			return nil, errorsmod.Wrapf(bridge.ErrUnauthorized, "%s is not a relayer", tx.Sender)
		}
		app.headers.Record(body.Block, body.Requests, body.Tallies)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown call %s", tx.Call)
	}
}

func (app *App) claimer() (bridge.Claimer, error) {
	c := app.conn.AsClaimer()
	if c == nil {
		return nil, errorsmod.Wrapf(bridge.ErrUnsupported, "bridge runs the %s variant", app.conn.Variant())
	}
	return c, nil
}

// reporterSet is a fixed reporter allow-list.
type reporterSet struct {
	members map[types.Address]bool
}

func newReporterSet(addrs []types.Address) *reporterSet {
	s := &reporterSet{members: make(map[types.Address]bool, len(addrs))}
	for _, a := range addrs {
		s.members[a] = true
	}
	return s
}

func (s *reporterSet) IsReporter(_ context.Context, who types.Address) (bool, error) {
	return s.members[who], nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
