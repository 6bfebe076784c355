package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"escrowchain/config"
	"escrowchain/core"
	"escrowchain/indexer"
	"escrowchain/native/arbitration"
	"escrowchain/native/escrow"
	"escrowchain/observability/logging"
	"escrowchain/observability/metrics"
	"escrowchain/observability/otel"
	"escrowchain/storage"
)

// node bundles the long-lived resources escrowd opens at boot.
type node struct {
	db       storage.Database
	host     *core.Host
	index    *indexer.Store
	shutdown func(context.Context) error
	logger   *slog.Logger
}

func openNode(ctx context.Context, cfg *config.Config, env string, logger *slog.Logger, m *metrics.EscrowMetrics) (_ *node, err error) {
	n := &node{logger: logger}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	n.shutdown, err = otel.Init(ctx, otel.Config{
		ServiceName: "escrowd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	n.db, err = storage.Open(cfg.Storage.Backend, cfg.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	custody, err := cfg.CustodyAddress()
	if err != nil {
		return nil, err
	}
	shares, err := cfg.Shares()
	if err != nil {
		return nil, err
	}
	n.host, err = core.NewHost(n.db, core.HostConfig{
		Custody:     custody,
		Shares:      shares,
		Params:      cfg.Params(),
		Passthrough: cfg.Escrow.Confidential,
		Entropy:     rand.Reader,
		Logger:      logger,
		Observer:    m,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Escrow.Paused {
		n.host.SetPaused(escrow.ModuleName, true)
	}
	n.host.AddSink(m)
	n.host.AddSink(logging.NewEventSink(logger))

	if cfg.Indexer.DSN != "" {
		n.index, err = indexer.Open(cfg.Indexer.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("indexer: %w", err)
		}
		n.host.AddSink(n.index)
	}

	allocations, err := cfg.Allocations()
	if err != nil {
		return nil, err
	}
	genesis := make([]core.Allocation, 0, len(allocations))
	for _, alloc := range allocations {
		genesis = append(genesis, core.Allocation{Address: alloc.Address, Amount: alloc.Amount})
	}
	applied, err := n.host.ApplyGenesis(ctx, genesis)
	if err != nil {
		return nil, err
	}
	if applied {
		logger.Info("genesis allocations applied", slog.Int("accounts", len(genesis)))
	}

	if path := cfg.Escrow.ArbitratorPoolFile; path != "" {
		pool, err := config.LoadArbitratorPool(path)
		if err != nil {
			return nil, err
		}
		if err := syncArbitrators(ctx, n.host, pool); err != nil {
			return nil, err
		}
		logger.Info("arbitrator pool loaded", slog.String("file", path), slog.Int("entries", len(pool)))
	}
	return n, nil
}

// syncArbitrators brings the registry in line with the pool file. Inactive
// entries that were never registered are skipped.
func syncArbitrators(ctx context.Context, host *core.Host, pool []config.ArbitratorEntry) error {
	for _, entry := range pool {
		if entry.Active {
			if err := host.RegisterArbitrator(ctx, entry.Address, entry.Label); err != nil {
				return fmt.Errorf("register arbitrator %s: %w", entry.Address, err)
			}
			continue
		}
		err := host.SetArbitratorActive(ctx, entry.Address, false)
		if err != nil && !errors.Is(err, arbitration.ErrUnknownArbitrator) {
			return fmt.Errorf("deactivate arbitrator %s: %w", entry.Address, err)
		}
	}
	return nil
}

func (n *node) Close() {
	if n.index != nil {
		if err := n.index.Close(); err != nil {
			n.logger.Warn("indexer close failed", slog.Any("error", err))
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn("state close failed", slog.Any("error", err))
		}
	}
	if n.shutdown != nil {
		if err := n.shutdown(context.Background()); err != nil {
			n.logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}
}
