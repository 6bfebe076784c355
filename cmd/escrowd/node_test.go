package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"escrowchain/config"
	"escrowchain/crypto"
	"escrowchain/native/escrow"
	"escrowchain/observability/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Storage.Backend = "bolt"
	cfg.Indexer.DSN = filepath.Join(dir, "index.db")
	cfg.Genesis = []config.Allocation{
		{Address: crypto.Address{0x01}.String(), Amount: "10000"},
	}

	pool := "arbitrators:\n" +
		"  - address: " + crypto.Address{0x03}.String() + "\n" +
		"    label: primary\n" +
		"  - address: " + crypto.Address{0x04}.String() + "\n" +
		"    label: retired\n" +
		"    active: false\n"
	cfg.Escrow.ArbitratorPoolFile = filepath.Join(dir, "arbitrators.yaml")
	require.NoError(t, os.WriteFile(cfg.Escrow.ArbitratorPoolFile, []byte(pool), 0o600))
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenNodeAppliesGenesisOnce(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	n, err := openNode(ctx, cfg, "test", quietLogger(), metrics.NewEscrowMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	bal, err := n.host.Balance(crypto.Address{0x01})
	require.NoError(t, err)
	require.Equal(t, int64(10_000), bal.Int64())

	pool, err := n.host.Arbitrators()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{crypto.Address{0x03}}, pool)
	require.NotNil(t, n.index)
	n.Close()

	again, err := openNode(ctx, cfg, "test", quietLogger(), metrics.NewEscrowMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer again.Close()
	bal, err = again.host.Balance(crypto.Address{0x01})
	require.NoError(t, err)
	require.Equal(t, int64(10_000), bal.Int64())
}

func TestSyncArbitratorsDeactivates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Escrow.ArbitratorPoolFile = ""
	cfg.Indexer.DSN = ""
	ctx := context.Background()

	n, err := openNode(ctx, cfg, "test", quietLogger(), metrics.NewEscrowMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer n.Close()
	require.Nil(t, n.index)

	require.NoError(t, syncArbitrators(ctx, n.host, []config.ArbitratorEntry{
		{Address: crypto.Address{0x03}, Label: "a", Active: true},
		{Address: crypto.Address{0x04}, Label: "b", Active: true},
	}))
	require.NoError(t, syncArbitrators(ctx, n.host, []config.ArbitratorEntry{
		{Address: crypto.Address{0x04}, Active: false},
		{Address: crypto.Address{0x05}, Active: false},
	}))
	pool, err := n.host.Arbitrators()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{crypto.Address{0x03}}, pool)
}

func TestRunRequiresJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.JWTSecret = ""
	cfg.RPC.JWTSecretEnv = ""
	err := run(context.Background(), cfg, "test", quietLogger())
	require.ErrorContains(t, err, "JWT secret")
}

func TestOpenNodeHonoursPausedFlag(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indexer.DSN = ""
	cfg.Escrow.Paused = true
	n, err := openNode(context.Background(), cfg, "test", quietLogger(), metrics.NewEscrowMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer n.Close()
	require.Equal(t, []string{escrow.ModuleName}, n.host.Paused())
}
