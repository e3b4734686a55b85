// Package local provides a zero-copy, in-process bridge connection.
//
// For host applications compiled into the same binary as the bridge,
// this adapter builds the enforcing server from a configuration and
// owns its query store, with no serialization overhead.
package local

import (
	"context"
	"errors"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/types"
)

// Compile-time interface check.
var _ bridge.Connection = (*Connection)(nil)

// Connection is an in-process bridge.
type Connection struct {
	srv *server.Server
	cfg server.Config
}

// NewConnection creates an in-process bridge from cfg. The connection
// takes ownership of cfg.Store and closes it on Close.
func NewConnection(cfg server.Config) (*Connection, error) {
	srv, err := server.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{srv: srv, cfg: cfg}, nil
}

func (c *Connection) Post(ctx context.Context, tx types.TxContext, req types.PostRequest) (types.QueryID, error) {
	return c.srv.Post(ctx, tx, req)
}

func (c *Connection) UpgradeReward(ctx context.Context, tx types.TxContext, id types.QueryID) error {
	return c.srv.UpgradeReward(ctx, tx, id)
}

func (c *Connection) ReportResult(ctx context.Context, tx types.TxContext, report types.ResultReport) error {
	return c.srv.ReportResult(ctx, tx, report)
}

func (c *Connection) Delete(ctx context.Context, tx types.TxContext, id types.QueryID) (types.Response, error) {
	return c.srv.Delete(ctx, tx, id)
}

func (c *Connection) Status(ctx context.Context, id types.QueryID) (types.Status, error) {
	return c.srv.Status(ctx, id)
}

func (c *Connection) ReadRequest(ctx context.Context, id types.QueryID) (types.Request, error) {
	return c.srv.ReadRequest(ctx, id)
}

func (c *Connection) ReadPayload(ctx context.Context, id types.QueryID) ([]byte, error) {
	return c.srv.ReadPayload(ctx, id)
}

func (c *Connection) ReadResponse(ctx context.Context, id types.QueryID) (types.Response, error) {
	return c.srv.ReadResponse(ctx, id)
}

func (c *Connection) RewardBalance(ctx context.Context, id types.QueryID) (uint64, error) {
	return c.srv.RewardBalance(ctx, id)
}

func (c *Connection) EstimateReward(ctx context.Context, gasPrice uint64) (uint64, error) {
	return c.srv.EstimateReward(ctx, gasPrice)
}

func (c *Connection) QueryCount(ctx context.Context) (uint64, error) {
	return c.srv.QueryCount(ctx)
}

func (c *Connection) Variant() types.Variant {
	return c.srv.Variant()
}

func (c *Connection) AsClaimer() bridge.Claimer {
	return c.srv.AsClaimer()
}

// Close stops the server and closes the query store.
func (c *Connection) Close() error {
	return errors.Join(c.srv.Close(), c.cfg.Store.Close())
}

// Server returns the underlying server for advanced use cases.
func (c *Connection) Server() *server.Server {
	return c.srv
}
