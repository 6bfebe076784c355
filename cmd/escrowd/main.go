package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"escrowchain/config"
	"escrowchain/observability/logging"
	"escrowchain/observability/metrics"
	"escrowchain/rpc"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESCROW_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("escrowd", env,
		logging.WithLevel(logging.ParseLevel(cfg.Logging.Level)),
		logging.WithFile(logging.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   true,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, env, logger); err != nil {
		logger.Error("escrowd stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("escrowd shut down cleanly")
}

func run(ctx context.Context, cfg *config.Config, env string, logger *slog.Logger) error {
	secret := cfg.JWTSecretValue()
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("rpc JWT secret required; set %s or rpc.JWTSecret", cfg.RPC.JWTSecretEnv)
	}

	n, err := openNode(ctx, cfg, env, logger, metrics.Escrow())
	if err != nil {
		return err
	}
	defer n.Close()

	var index rpc.EventIndex
	if n.index != nil {
		index = n.index
	}
	server, err := rpc.NewServer(n.host, index, rpc.Config{
		Auth: rpc.AuthConfig{HMACSecret: secret, Issuer: cfg.RPC.JWTIssuer},
		CommitLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RPC.CommitRatePerMinute,
			Burst:             cfg.RPC.CommitBurst,
		},
		MaxConnections:    cfg.RPC.MaxConnections,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.RPC.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPC.ListenAddress, err)
	}
	if err := server.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
