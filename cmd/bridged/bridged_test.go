package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/bridgeberry/config"
	"github.com/blockberries/bridgeberry/logging"
	"github.com/blockberries/bridgeberry/merkle"
	"github.com/blockberries/bridgeberry/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInit(t *testing.T) {
	home := t.TempDir()
	reporter := strings.Repeat("0a", 20)
	relayer := strings.Repeat("0c", 20)

	out, err := run(t, "init", "--home", home, "--variant", "claim", "--reporter", reporter, "--relayer", relayer)
	require.NoError(t, err)
	require.Contains(t, out, "config.toml")

	cfg, err := config.LoadConfig(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	require.Equal(t, "claim", cfg.Bridge.Variant)
	require.Equal(t, []string{reporter}, cfg.Bridge.Reporters)
	require.Equal(t, []string{relayer}, cfg.Bridge.Relayers)

	_, err = run(t, "init", "--home", home)
	require.ErrorContains(t, err, "already exists")
	_, err = run(t, "init", "--home", home, "--force")
	require.NoError(t, err)

	_, err = run(t, "init", "--home", t.TempDir(), "--variant", "bogus")
	require.Error(t, err)
}

func TestVerifyProof(t *testing.T) {
	leaves := make([]types.Hash, 6)
	for i := range leaves {
		leaves[i] = types.HashBytes([]byte{byte(i)})
	}
	tree := merkle.NewTree(leaves)
	path, index, err := tree.Proof(4)
	require.NoError(t, err)

	hexPath := make([]string, len(path))
	for i, h := range path {
		hexPath[i] = h.String()
	}
	args := []string{"verify-proof",
		"--leaf", leaves[4].String(),
		"--root", tree.Root().String(),
		"--index", strconv.FormatUint(index, 10),
		"--path", strings.Join(hexPath, ","),
	}

	out, err := run(t, args...)
	require.NoError(t, err)
	require.Equal(t, "valid\n", out)

	args[2] = leaves[3].String()
	_, err = run(t, args...)
	require.ErrorContains(t, err, "does not reach root")

	_, err = run(t, "verify-proof", "--leaf", "zz", "--root", tree.Root().String())
	require.ErrorContains(t, err, "--leaf")
}

func TestOpenNode(t *testing.T) {
	home := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Bridge.Reporters = []string{strings.Repeat("0b", 20)}
	cfg.Bridge.Relayers = []string{strings.Repeat("0d", 20)}
	cfg.Store.Backend = "badgerdb"
	cfg.Metrics.Enabled = true

	n, err := openNode(cfg, home, logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, n.relayers, 1)

	ctx := context.Background()
	requester := types.Address{0x01}
	reporter, err := types.ParseAddress(cfg.Bridge.Reporters[0])
	require.NoError(t, err)

	floor, err := n.srv.EstimateReward(ctx, 1)
	require.NoError(t, err)
	id, err := n.srv.Post(ctx, types.TxContext{Sender: requester, Value: floor, GasPrice: 1}, types.PostRequest{Payload: []byte("q")})
	require.NoError(t, err)
	report := types.ResultReport{ID: id, ProofRef: types.HashBytes([]byte("tx")), Result: []byte("r")}
	require.NoError(t, n.srv.ReportResult(ctx, types.TxContext{Sender: reporter}, report))
	require.Equal(t, floor, n.bank.Balance(reporter).Uint64())
	require.NoError(t, n.Close())

	// Queries survive a restart.
	n, err = openNode(cfg, home, logging.NewNopLogger())
	require.NoError(t, err)
	defer n.Close()
	status, err := n.srv.Status(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.StatusReported, status)
}

func TestServeHelpNamesHeaderRelay(t *testing.T) {
	out, err := run(t, "serve", "--help")
	require.NoError(t, err)
	require.Contains(t, out, "RecordHeader")
	require.Contains(t, out, "relayers")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, Version+"\n", out)
}
