package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"escrowchain/core"
	"escrowchain/indexer"
)

// EventIndex answers history queries. It is optional.
type EventIndex interface {
	EventsFor(escrowID string) ([]indexer.Event, error)
	EscrowsFor(party string, limit int) ([]indexer.EscrowRecord, error)
}

type Config struct {
	Auth              AuthConfig
	CommitLimit       RateLimit
	MaxConnections    int
	ReadHeaderTimeout time.Duration
	Logger            *slog.Logger
	// MetricsHandler defaults to the global Prometheus registry.
	MetricsHandler http.Handler
}

// Server exposes the escrow host over JSON/HTTP.
type Server struct {
	host    *core.Host
	index   EventIndex
	auth    *Authenticator
	limiter *RateLimiter
	log     *slog.Logger
	cfg     Config
	handler http.Handler
}

// NewServer wires the routes. index may be nil, in which case history
// endpoints answer 503.
func NewServer(host *core.Host, index EventIndex, cfg Config) (*Server, error) {
	if host == nil {
		return nil, errors.New("rpc: host required")
	}
	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("rpc: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	s := &Server{
		host:    host,
		index:   index,
		auth:    auth,
		limiter: NewRateLimiter(cfg.CommitLimit),
		log:     cfg.Logger.With("component", "rpc"),
		cfg:     cfg,
	}
	s.handler = otelhttp.NewHandler(s.routes(), "escrow-rpc")
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogging(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.cfg.MetricsHandler)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.auth.Middleware)

		v1.Post("/escrows", s.handleCreate)
		v1.Post("/escrows/private", s.handleCreatePrivate)
		v1.Route("/escrows/{id}", func(er chi.Router) {
			er.Get("/", s.handleGet)
			er.Post("/release", s.handleRelease)
			er.Post("/refund", s.handleRefund)
			er.Post("/vote", s.handleVote)
			er.Get("/events", s.handleEvents)
			er.Get("/dispute", s.handleGetCommitment)
			er.Post("/dispute/reveal", s.handleReveal)
			er.Post("/dispute/expire", s.handleExpire)
			er.Group(func(limited chi.Router) {
				limited.Use(s.limiter.Middleware)
				limited.Post("/dispute/commit", s.handleCommit)
				limited.Post("/dispute/commit-private", s.handleCommitPrivate)
			})
		})
		v1.Get("/accounts/{address}/balance", s.handleBalance)
		v1.Get("/accounts/{address}/escrows", s.handleAccountEscrows)
		v1.Get("/arbitrators", s.handleArbitrators)
		v1.With(s.limiter.Middleware).Post("/confidential/commit", s.handleConfidentialCommit)
	})
	return r
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("rpc listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
