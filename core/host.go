package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"escrowchain/core/events"
	"escrowchain/core/state"
	"escrowchain/native/arbitration"
	"escrowchain/native/bank"
	"escrowchain/native/common"
	"escrowchain/native/confidential"
	"escrowchain/native/escrow"
	"escrowchain/native/fees"
	"escrowchain/storage"
)

// Observer records the latency and result of host operations.
type Observer interface {
	Observe(operation string, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) Observe(string, time.Duration, error) {}

// HostConfig wires the escrow engine's collaborators.
type HostConfig struct {
	// Custody is the account that holds escrowed value.
	Custody [20]byte
	Shares  []fees.Share
	Params  escrow.Params
	// Confidential enables private escrows when non-nil.
	Confidential confidential.Adapter
	// Passthrough enables private escrows backed by a confidential.Passthrough
	// kept in host state. It is ignored when Confidential is set.
	Passthrough bool
	// Entropy feeds the arbitration seed on first boot.
	Entropy  io.Reader
	Clock    func() time.Time
	Logger   *slog.Logger
	Observer Observer
}

// Host is the single writer of escrow state. It serialises every call, runs
// it against a staged state overlay and commits only when the call succeeds,
// so a failed call leaves balances and records untouched. Events raised by a
// call reach the sinks after its commit.
type Host struct {
	mu       sync.Mutex
	state    *state.Manager
	engine   *escrow.Engine
	registry *arbitration.Registry
	vault    *bank.Vault
	private  confidential.Adapter
	buffer   *events.Buffer
	sinks    events.Fanout
	pauses   common.PauseSet
	seed     arbitration.Seed
	clock    func() time.Time
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewHost builds a host over db, initialising the arbitration seed on first
// boot.
func NewHost(db storage.Database, cfg HostConfig) (*Host, error) {
	if db == nil {
		return nil, fmt.Errorf("host: database required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	mgr := state.NewManager(db)

	seed, err := arbitration.InitSeed(mgr, cfg.Entropy, cfg.Clock())
	if err != nil {
		return nil, err
	}
	private := cfg.Confidential
	if private == nil && cfg.Passthrough {
		salt, err := confidential.InitSalt(mgr, cfg.Entropy)
		if err != nil {
			return nil, err
		}
		private = confidential.NewPassthrough(mgr, salt)
	}
	if err := mgr.Commit(); err != nil {
		return nil, err
	}

	vault, err := bank.NewVault(mgr, cfg.Custody)
	if err != nil {
		return nil, err
	}
	distributor, err := fees.NewDistributor(vault, cfg.Shares)
	if err != nil {
		return nil, err
	}

	h := &Host{
		state:    mgr,
		registry: arbitration.NewRegistry(mgr),
		vault:    vault,
		private:  private,
		buffer:   &events.Buffer{},
		pauses:   make(common.PauseSet),
		seed:     seed,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("component", "host"),
		observer: cfg.Observer,
		tracer:   otel.Tracer("escrowchain/core"),
	}

	engine := escrow.NewEngine()
	if err := engine.SetParams(cfg.Params); err != nil {
		return nil, err
	}
	engine.SetState(mgr)
	engine.SetLedger(vault)
	engine.SetFeeDistributor(distributor)
	engine.SetArbitratorPool(h.registry)
	engine.SetConfidential(private)
	engine.SetPauses(h.pauses)
	engine.SetEntropySeed(seed)
	engine.SetEmitter(h.buffer)
	engine.SetNowFunc(func() int64 { return h.clock().Unix() })
	h.engine = engine
	return h, nil
}

// AddSink registers an emitter that receives committed events. Sinks must not
// call back into the host.
func (h *Host) AddSink(sink events.Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Seed returns the arbitration seed in use.
func (h *Host) Seed() arbitration.Seed { return h.seed }

// Custody returns the custody account address.
func (h *Host) Custody() [20]byte { return h.vault.Custody() }

// Execute runs fn against the engine as one atomic operation.
func (h *Host) Execute(ctx context.Context, operation string, fn func(*escrow.Engine) error) error {
	return h.txn(ctx, operation, func() error { return fn(h.engine) })
}

// Query runs a read-only fn against the engine. Any staged write is dropped.
func (h *Host) Query(fn func(*escrow.Engine) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.state.Discard()
	return fn(h.engine)
}

func (h *Host) txn(ctx context.Context, operation string, fn func() error) (err error) {
	start := h.clock()
	ctx, span := h.tracer.Start(ctx, "host."+operation)
	defer span.End()
	defer func() { h.observer.Observe(operation, h.clock().Sub(start), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := fn(); err != nil {
		h.state.Discard()
		h.buffer.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("escrow.error_kind", escrow.Kind(err)))
		h.logger.DebugContext(ctx, "operation rejected", "operation", operation, "kind", escrow.Kind(err), "error", err)
		return err
	}
	if err := h.state.Commit(); err != nil {
		h.state.Discard()
		h.buffer.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "state commit failed", "operation", operation, "error", err)
		return err
	}
	committed := h.buffer.Drain()
	for _, evt := range committed {
		h.sinks.Emit(evt)
	}
	span.SetAttributes(attribute.Int("escrow.events", len(committed)))
	return nil
}

// SetPaused toggles the pause flag of module.
func (h *Host) SetPaused(module string, paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses[module] = paused
	h.logger.Info("pause flag changed", "module", module, "paused", paused)
}

// Paused lists the modules currently paused, sorted.
func (h *Host) Paused() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pauses.Paused()
	sort.Strings(out)
	return out
}

// RegisterArbitrator adds or reactivates an arbitrator.
func (h *Host) RegisterArbitrator(ctx context.Context, addr [20]byte, label string) error {
	return h.txn(ctx, "register_arbitrator", func() error {
		return h.registry.Register(addr, label, uint64(h.clock().Unix()))
	})
}

// SetArbitratorActive toggles eligibility of a registered arbitrator.
func (h *Host) SetArbitratorActive(ctx context.Context, addr [20]byte, active bool) error {
	return h.txn(ctx, "set_arbitrator_active", func() error {
		return h.registry.SetActive(addr, active)
	})
}

// Arbitrators lists the active arbitrator pool.
func (h *Host) Arbitrators() ([][20]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Active()
}

// Allocate credits addr out of thin air. It is meant for genesis balances and
// development faucets only.
func (h *Host) Allocate(ctx context.Context, addr [20]byte, amount *big.Int) error {
	if addr == h.vault.Custody() {
		return errors.New("host: cannot allocate to custody")
	}
	return h.txn(ctx, "allocate", func() error {
		return h.state.Credit(addr, amount)
	})
}

// CommitConfidential stores value with the confidential adapter and returns
// its handle, for clients preparing private escrows and stakes.
func (h *Host) CommitConfidential(ctx context.Context, value *big.Int) (confidential.Handle, error) {
	if h.private == nil {
		return confidential.Handle{}, escrow.ErrPrivacyUnavailable
	}
	if value == nil || value.Sign() <= 0 {
		return confidential.Handle{}, escrow.ErrInvalidAmount
	}
	var handle confidential.Handle
	err := h.txn(ctx, "confidential_commit", func() error {
		var err error
		handle, err = h.private.Commit(value)
		return err
	})
	if err != nil {
		return confidential.Handle{}, err
	}
	return handle, nil
}

// Allocation is a genesis balance.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

var genesisMarkerKey = []byte("host/genesis-applied")

// ApplyGenesis credits allocations in one operation, once per database. It
// reports whether the allocations were applied by this call.
func (h *Host) ApplyGenesis(ctx context.Context, allocations []Allocation) (bool, error) {
	applied := false
	err := h.txn(ctx, "genesis", func() error {
		var done bool
		if _, err := h.state.KVGet(genesisMarkerKey, &done); err != nil {
			return err
		}
		if done {
			return nil
		}
		for _, alloc := range allocations {
			if alloc.Address == h.vault.Custody() {
				return errors.New("host: cannot allocate to custody")
			}
			if err := h.state.Credit(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("host: genesis allocation: %w", err)
			}
		}
		applied = true
		return h.state.KVPut(genesisMarkerKey, true)
	})
	return applied && err == nil, err
}

// Balance returns the committed balance of addr.
func (h *Host) Balance(addr [20]byte) (*big.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Balance(addr)
}
