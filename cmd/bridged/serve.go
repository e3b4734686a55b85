package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/blockberries/bridgeberry/config"
	bridgegrpc "github.com/blockberries/bridgeberry/grpc"
	"github.com/blockberries/bridgeberry/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge gRPC service",
		Long: `Load config.toml from --home, open the configured stores and serve the
bridge over gRPC until interrupted. When metrics are enabled they are
served over HTTP at /metrics.

External block roots are kept in memory and fed by the relayers listed
under [bridge] relayers through the RecordHeader call. Inclusion and
claim-variant result proofs are rejected for blocks no relayer has
recorded since the node started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			log, err := logging.NewFromConfig(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, filepath.Dir(path), log)
		},
	}
}

// serve runs the bridge until ctx is done.
func serve(ctx context.Context, cfg *config.Config, home string, log *logging.Logger) error {
	n, err := openNode(cfg, home, log)
	if err != nil {
		return err
	}
	defer n.Close()

	lis, err := net.Listen("tcp", cfg.RPC.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.RPC.ListenAddr, err)
	}
	gs := grpc.NewServer()
	bridgegrpc.NewGRPCServer(n.srv).WithHeaders(n.headers, n.relayers).Register(gs)

	errCh := make(chan error, 2)
	go func() {
		errCh <- gs.Serve(lis)
	}()
	log.Info("bridge serving",
		"rpc", lis.Addr().String(),
		"variant", n.srv.Variant().String(),
		"store", cfg.Store.Backend,
		"relayers", len(n.relayers),
	)

	var metricsSrv *http.Server
	if n.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", n.metrics.HTTPHandler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		log.Info("metrics serving", "addr", cfg.Metrics.ListenAddr)
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error("server stopped", logging.Error(err))
	}

	shutdown(gs, cfg.RPC.ShutdownTimeout.Duration())
	if metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.RPC.ShutdownTimeout.Duration())
		defer cancel()
		_ = metricsSrv.Shutdown(sctx)
	}
	log.Info("bridge stopped")
	return err
}

// shutdown stops gs gracefully, cutting connections after timeout.
func shutdown(gs *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		gs.Stop()
		<-done
	}
}
