package server

import (
	"context"
	"errors"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/eligibility"
	"github.com/blockberries/bridgeberry/escrow"
	"github.com/blockberries/bridgeberry/lifecycle"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/metrics"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// DefaultMaxProofDepth bounds merkle path length when none is configured.
const DefaultMaxProofDepth = 32

// TracerName is the instrumentation name of the server's spans.
const TracerName = "github.com/blockberries/bridgeberry/server"

// Params are the protocol parameters of a bridge.
type Params struct {
	Variant types.Variant
	// Units of work a result report costs; the price floor is
	// GasPrice times this.
	ReportGasEstimate uint64
	// Host blocks a claim stays exclusive (claim variant).
	ClaimExpiry uint64
	// Longest merkle path accepted.
	MaxProofDepth int
}

// DefaultParams returns the parameters of a direct-variant bridge.
func DefaultParams() Params {
	return Params{
		Variant:           types.VariantDirect,
		ReportGasEstimate: escrow.DefaultReportGasEstimate,
		ClaimExpiry:       lifecycle.DefaultClaimExpiry,
		MaxProofDepth:     DefaultMaxProofDepth,
	}
}

// Config wires a Server to its store and collaborators. Store and Bank
// are always required. The direct variant needs Reporters, the claim
// variant needs Headers. Everything else has a default.
type Config struct {
	Params Params

	Store       store.Store
	Bank        bridge.Bank
	Headers     bridge.HeaderStore
	Reporters   bridge.ReporterSet
	Payloads    bridge.PayloadStore
	Eligibility bridge.Eligibility
	Events      bridge.EventSink

	Logger         *logging.Logger
	Metrics        metrics.Metrics
	TracerProvider trace.TracerProvider
}

// Server is the bridge facade. It implements bridge.Bridge in both
// variants and bridge.Claimer in the claim variant.
type Server struct {
	params Params

	store       store.Store
	bank        bridge.Bank
	headers     bridge.HeaderStore
	reporters   bridge.ReporterSet
	payloads    bridge.PayloadStore
	eligibility bridge.Eligibility
	events      bridge.EventSink

	machine *lifecycle.Machine
	ledger  *escrow.Ledger
	guard   *Guard

	log     *logging.Logger
	metrics metrics.Metrics
	tracer  trace.Tracer
}

var (
	_ bridge.Bridge  = (*Server)(nil)
	_ bridge.Claimer = (*Server)(nil)
)

// New creates a server from cfg.
func New(cfg Config) (*Server, error) {
	p := cfg.Params
	switch {
	case cfg.Store == nil:
		return nil, errorsmod.Wrap(bridge.ErrInvalidConfig, "no query store")
	case cfg.Bank == nil:
		return nil, errorsmod.Wrap(bridge.ErrInvalidConfig, "no bank")
	case p.Variant.HasClaims() && cfg.Headers == nil:
		return nil, errorsmod.Wrap(bridge.ErrInvalidConfig, "claim variant needs a header store")
	case !p.Variant.HasClaims() && cfg.Reporters == nil:
		return nil, errorsmod.Wrap(bridge.ErrInvalidConfig, "direct variant needs a reporter set")
	case p.MaxProofDepth < 0:
		return nil, errorsmod.Wrapf(bridge.ErrInvalidConfig, "max proof depth %d", p.MaxProofDepth)
	}
	if p.MaxProofDepth == 0 {
		p.MaxProofDepth = DefaultMaxProofDepth
	}

	s := &Server{
		store:       cfg.Store,
		bank:        cfg.Bank,
		headers:     cfg.Headers,
		reporters:   cfg.Reporters,
		payloads:    cfg.Payloads,
		eligibility: cfg.Eligibility,
		events:      cfg.Events,
		machine:     lifecycle.New(p.Variant, p.ClaimExpiry),
		ledger:      escrow.New(escrow.Params{ReportGasEstimate: p.ReportGasEstimate}),
		guard:       NewGuard(),
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
	}
	// Record the defaults the machine and ledger resolved.
	p.ClaimExpiry = s.machine.ClaimExpiry()
	p.ReportGasEstimate = s.ledger.Params().ReportGasEstimate
	s.params = p

	if s.eligibility == nil {
		s.eligibility = eligibility.Always{}
	}
	if s.log == nil {
		s.log = logging.NewNopLogger()
	}
	s.log = s.log.WithComponent("bridge").With("variant", p.Variant.String())
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(TracerName)
	return s, nil
}

// Params returns the effective protocol parameters.
func (s *Server) Params() Params { return s.params }

// Variant returns the lifecycle variant the server enforces.
func (s *Server) Variant() types.Variant { return s.params.Variant }

// AsClaimer returns the server as a Claimer in the claim variant, or nil.
func (s *Server) AsClaimer() bridge.Claimer {
	if s.params.Variant.HasClaims() {
		return s
	}
	return nil
}

// Close stops admitting operations. The store and collaborators are
// owned by the caller and stay open.
func (s *Server) Close() error {
	if s.guard.Close() {
		s.log.Info("bridge closed")
	}
	return nil
}

// begin opens the span of an operation and returns the function that
// records its outcome.
func (s *Server) begin(ctx context.Context, op lifecycle.Op, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "bridge."+op.String(), trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		s.metrics.ObserveOpLatency(op.String(), time.Since(start))
		if err != nil {
			kind := bridge.Kind(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			s.metrics.IncRejection(op.String(), kind)
			s.log.Debug("operation rejected", logging.Op(op.String()), logging.Error(err))
		} else {
			s.metrics.IncTransition(op.String())
		}
		span.End()
	}
}

// lock acquires ids for a state-changing operation. Ids with a payout
// in flight are refused, not waited on.
func (s *Server) lock(ids ...types.QueryID) (release func(), err error) {
	release = s.guard.Acquire(ids...)
	for _, id := range ids {
		if s.guard.Settling(id) {
			release()
			return nil, errorsmod.Wrapf(bridge.ErrWrongStatus, "query %s: payout in flight", id)
		}
	}
	return release, nil
}

// load returns the record stored under id, or nil if there is none,
// together with the derived status.
func (s *Server) load(ctx context.Context, id types.QueryID) (*types.Query, types.Status, error) {
	q, err := s.store.Get(ctx, id)
	if errors.Is(err, bridge.ErrNotFound) {
		status, err := s.absentStatus(ctx, id)
		return nil, status, err
	}
	if err != nil {
		return nil, types.StatusUnknown, err
	}
	return q, q.Status(), nil
}

// absentStatus tells a never-posted id from a deleted one. Only
// sequence ids can be told apart: content ids of deleted queries are
// free to be posted again.
func (s *Server) absentStatus(ctx context.Context, id types.QueryID) (types.Status, error) {
	if s.params.Variant.ContentAddressed() {
		return types.StatusUnknown, nil
	}
	n, ok := id.Sequence()
	if !ok || n == 0 {
		return types.StatusUnknown, nil
	}
	count, err := s.store.Count(ctx)
	if err != nil {
		return types.StatusUnknown, err
	}
	if n <= count {
		return types.StatusRemoved, nil
	}
	return types.StatusUnknown, nil
}

// put commits a single record.
func (s *Server) put(ctx context.Context, qs ...*types.Query) error {
	var b store.Batch
	for _, q := range qs {
		b.Put(q)
	}
	return s.store.Apply(ctx, &b)
}

func (s *Server) emit(ev types.Event) {
	if s.events != nil {
		s.events.Emit(ev)
	}
}
