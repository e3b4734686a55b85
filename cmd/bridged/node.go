package main

import (
	"context"
	"errors"
	"fmt"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/bank"
	"github.com/blockberries/bridgeberry/config"
	"github.com/blockberries/bridgeberry/eligibility"
	"github.com/blockberries/bridgeberry/headers"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/metrics"
	"github.com/blockberries/bridgeberry/payload"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// addressSet is the reporter set loaded from configuration.
type addressSet map[types.Address]struct{}

func (s addressSet) IsReporter(_ context.Context, who types.Address) (bool, error) {
	_, ok := s[who]
	return ok, nil
}

// node is a bridge server with the backends it owns.
type node struct {
	srv      *server.Server
	store    store.Store
	payloads *payload.Store
	headers  *headers.Memory
	relayers []types.Address
	bank     *bank.Memory
	metrics  *metrics.PrometheusMetrics
	log      *logging.Logger
}

// openNode opens the configured backends and builds the server. Data
// paths are resolved against home.
func openNode(cfg *config.Config, home string, log *logging.Logger) (*node, error) {
	params, err := cfg.Bridge.Params()
	if err != nil {
		return nil, err
	}
	addrs, err := cfg.Bridge.ReporterAddresses()
	if err != nil {
		return nil, err
	}
	reporters := make(addressSet, len(addrs))
	for _, a := range addrs {
		reporters[a] = struct{}{}
	}

	var elig bridge.Eligibility = eligibility.Always{}
	if cfg.Eligibility.Mode == config.EligibilityVRF {
		seed, err := cfg.Eligibility.SeedBytes()
		if err != nil {
			return nil, err
		}
		if elig, err = eligibility.NewVRF(seed, cfg.Eligibility.Threshold); err != nil {
			return nil, err
		}
	}

	relayers, err := cfg.Bridge.RelayerAddresses()
	if err != nil {
		return nil, err
	}

	n := &node{
		headers:  headers.NewMemory(),
		relayers: relayers,
		bank:     bank.NewMemory(),
		log:      log,
	}
	var m metrics.Metrics = metrics.NewNopMetrics()
	if cfg.Metrics.Enabled {
		n.metrics = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		m = n.metrics
	}

	if n.store, err = store.Open(cfg.Store.Backend, resolve(home, cfg.Store.Path)); err != nil {
		return nil, fmt.Errorf("opening query store: %w", err)
	}
	if n.payloads, err = payload.Open(cfg.Payload.Backend, resolve(home, cfg.Payload.Path)); err != nil {
		_ = n.store.Close()
		return nil, fmt.Errorf("opening payload store: %w", err)
	}

	n.srv, err = server.New(server.Config{
		Params:      params,
		Store:       n.store,
		Bank:        n.bank,
		Headers:     n.headers,
		Reporters:   reporters,
		Payloads:    n.payloads,
		Eligibility: elig,
		Events:      eventLog{log.WithComponent("events")},
		Logger:      log,
		Metrics:     m,
	})
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	if count, err := n.store.Count(context.Background()); err == nil {
		m.SetQueryCount(count)
	}
	return n, nil
}

// Close stops the server and closes the backends.
func (n *node) Close() error {
	var errs []error
	if n.srv != nil {
		errs = append(errs, n.srv.Close())
	}
	if n.payloads != nil {
		errs = append(errs, n.payloads.Close())
	}
	if n.store != nil {
		errs = append(errs, n.store.Close())
	}
	return errors.Join(errs...)
}

// eventLog writes bridge events to the log.
type eventLog struct {
	log *logging.Logger
}

func (e eventLog) Emit(ev types.Event) {
	args := make([]any, 0, 2*len(ev.Attributes))
	for _, a := range ev.Attributes {
		args = append(args, a.Key, a.Value)
	}
	e.log.Info(ev.Kind, args...)
}
