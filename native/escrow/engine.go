package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"escrowchain/core/events"
	"escrowchain/core/types"
	"escrowchain/native/arbitration"
	"escrowchain/native/common"
	"escrowchain/native/confidential"
	"escrowchain/native/fees"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilLedger = errors.New("escrow engine: ledger not configured")
	errNilFees   = errors.New("escrow engine: fee distributor not configured")
	errNilPool   = errors.New("escrow engine: arbitrator pool not configured")
)

type engineState interface {
	EscrowNextSequence() (uint64, error)
	EscrowPut(*Escrow) error
	EscrowGet(id [32]byte) (*Escrow, bool, error)
	DisputeCommitmentPut(*DisputeCommitment) error
	DisputeCommitmentGet(id [32]byte) (*DisputeCommitment, bool, error)
	DisputeCommitmentDelete(id [32]byte) error
	EscrowVotePut(id [32]byte, voter [20]byte) error
	EscrowHasVoted(id [32]byte, voter [20]byte) (bool, error)
	DisputeQuotaGet(addr [20]byte) (common.QuotaNow, error)
	DisputeQuotaPut(addr [20]byte, q common.QuotaNow) error
}

// Ledger moves value between holders and escrow custody. Each call either
// fully succeeds or fails without effect.
type Ledger interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}

// FeeDistributor splits a settlement fee across its configured recipients.
type FeeDistributor interface {
	Distribute(total *big.Int) ([]fees.Payout, error)
}

// ArbitratorPool lists the arbitrators currently eligible for assignment,
// minus the excluded addresses.
type ArbitratorPool interface {
	Eligible(exclude ...[20]byte) ([][20]byte, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine is the escrow state machine. It is not safe for concurrent use: the
// host serialises calls and supplies transactional state, so any error leaves
// no partial effect behind.
type Engine struct {
	state   engineState
	ledger  Ledger
	fees    FeeDistributor
	pool    ArbitratorPool
	private confidential.Adapter
	pauses  common.PauseView
	emitter events.Emitter
	seed    arbitration.Seed
	params  Params
	nowFn   func() int64
	guard   common.ReentrancyGuard
}

// NewEngine creates an escrow engine with default parameters and a no-op
// emitter. Collaborators are wired through the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the value ledger adapter.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetFeeDistributor configures where settlement fees and forfeited stakes go.
func (e *Engine) SetFeeDistributor(d FeeDistributor) { e.fees = d }

// SetArbitratorPool configures the registry arbitrators are drawn from.
func (e *Engine) SetArbitratorPool(pool ArbitratorPool) { e.pool = pool }

// SetConfidential enables privacy-mode escrows. Nil disables them.
func (e *Engine) SetConfidential(adapter confidential.Adapter) { e.private = adapter }

// SetPauses configures the pause view consulted before opening new escrows
// or disputes.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEntropySeed sets the deployment-wide seed mixed into arbitrator
// selection. It is expected to be called once during start-up.
func (e *Engine) SetEntropySeed(seed arbitration.Seed) { e.seed = seed }

// SetParams replaces the runtime parameters after validating them.
func (e *Engine) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.params = p
	return nil
}

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// enter acquires the reentrancy guard and checks the mandatory collaborators.
func (e *Engine) enter() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	return e.guard.Enter()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id [32]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

func (e *Engine) validateOpen(buyer, seller [20]byte, duration time.Duration) error {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if seller == ([20]byte{}) || buyer == ([20]byte{}) {
		return fmt.Errorf("%w: zero identity", ErrInvalidParty)
	}
	if seller == buyer {
		return fmt.Errorf("%w: buyer and seller must differ", ErrInvalidParty)
	}
	if duration < e.params.MinDuration || duration > e.params.MaxDuration {
		return fmt.Errorf("%w: %s outside [%s, %s]", ErrInvalidDuration, duration, e.params.MinDuration, e.params.MaxDuration)
	}
	return nil
}

func (e *Engine) transferIn(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.TransferIn(from, amount); err != nil {
		return fmt.Errorf("escrow: lock funds: %w", err)
	}
	return nil
}

func (e *Engine) transferOut(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.TransferOut(to, amount); err != nil {
		return fmt.Errorf("escrow: pay out: %w", err)
	}
	return nil
}

// CreateEscrow locks amount plus the settlement fee from buyer and opens an
// escrow in favour of seller that may be refunded after duration.
func (e *Engine) CreateEscrow(buyer, seller [20]byte, amount *big.Int, duration time.Duration) (*Escrow, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.validateOpen(buyer, seller, duration); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	amt := cloneBigInt(amount)
	fee := fees.FeeFor(amt, e.params.FeeBps)
	if err := e.transferIn(buyer, new(big.Int).Add(amt, fee)); err != nil {
		return nil, err
	}
	esc, err := e.openEscrow(buyer, seller, duration, func(esc *Escrow) {
		esc.Amount = amt
		esc.Fee = fee
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

func (e *Engine) openEscrow(buyer, seller [20]byte, duration time.Duration, fill func(*Escrow)) (*Escrow, error) {
	seq, err := e.state.EscrowNextSequence()
	if err != nil {
		return nil, err
	}
	now := e.now()
	esc := &Escrow{
		ID:        DeriveID(buyer, seller, seq),
		Buyer:     buyer,
		Seller:    seller,
		Expiry:    now + int64(duration/time.Second),
		CreatedAt: now,
	}
	fill(esc)
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// ReleaseFunds pays the principal to the seller. Only the buyer's call has an
// effect; the seller's call passes the same checks and changes nothing.
func (e *Engine) ReleaseFunds(id [32]byte, caller [20]byte) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.IsParty(caller) {
		return ErrNotParticipant
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if caller != esc.Buyer {
		return nil
	}
	return e.settle(esc, OutcomeReleased)
}

// RefundBuyer returns the principal to the buyer. The seller may refund at
// any time before a dispute; the buyer only once the escrow has expired.
func (e *Engine) RefundBuyer(id [32]byte, caller [20]byte) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if !esc.IsParty(caller) {
		return ErrNotParticipant
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if caller == esc.Buyer && e.now() <= esc.Expiry {
		return fmt.Errorf("%w: escrow expires at %d", ErrRefundLocked, esc.Expiry)
	}
	return e.settle(esc, OutcomeRefunded)
}

// settlement captures the custody values being paid out by settle, read
// before the escrow record is zeroed.
type settlement struct {
	principal *big.Int
	fee       *big.Int
	stake     *big.Int
	commit    *DisputeCommitment
	returned  bool
}

// settle resolves esc with outcome. All bookkeeping is written before any
// value leaves custody, so a callback from the ledger observes a resolved
// escrow.
func (e *Engine) settle(esc *Escrow, outcome Outcome) error {
	s, err := e.prepareSettlement(esc, outcome)
	if err != nil {
		return err
	}
	paidHandle := esc.AmountHandle
	feeHandle := esc.FeeHandle

	esc.Resolved = true
	esc.Outcome = outcome
	esc.Amount = big.NewInt(0)
	esc.Fee = big.NewInt(0)
	esc.AmountHandle = confidential.Handle{}
	esc.FeeHandle = confidential.Handle{}
	esc.StakeHandle = confidential.Handle{}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	if s.commit != nil {
		if err := e.state.DisputeCommitmentDelete(esc.ID); err != nil {
			return err
		}
	}

	recipient := esc.Seller
	if outcome == OutcomeRefunded {
		recipient = esc.Buyer
	}
	if err := e.transferOut(recipient, s.principal); err != nil {
		return err
	}
	payouts, err := e.distribute(s.fee)
	if err != nil {
		return err
	}
	if s.commit != nil {
		if err := e.settleStake(esc, s); err != nil {
			return err
		}
	}

	if outcome == OutcomeReleased {
		e.emit(NewReleasedEvent(esc, recipient, s.principal, paidHandle))
	} else {
		e.emit(NewRefundedEvent(esc, recipient, s.principal, paidHandle))
	}
	if s.fee.Sign() > 0 {
		e.emit(NewFeeCollectedEvent(esc, s.fee, feeHandle, payouts))
	}
	e.emit(NewResolvedEvent(esc))
	return nil
}

func (e *Engine) prepareSettlement(esc *Escrow, outcome Outcome) (*settlement, error) {
	principal, err := e.reveal(esc, esc.Amount, esc.AmountHandle)
	if err != nil {
		return nil, err
	}
	fee, err := e.reveal(esc, esc.Fee, esc.FeeHandle)
	if err != nil {
		return nil, err
	}
	s := &settlement{principal: principal, fee: fee, stake: big.NewInt(0)}
	commit, ok, err := e.state.DisputeCommitmentGet(esc.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s, nil
	}
	stake, err := e.reveal(esc, commit.Stake, commit.StakeHandle)
	if err != nil {
		return nil, err
	}
	s.commit = commit
	s.stake = stake
	s.returned = stakeReturned(esc, commit, outcome, e.now())
	return s, nil
}

// stakeReturned decides the fate of a dispute stake when its escrow settles.
// A revealed dispute returns the stake only when the outcome favours the
// disputer. An unrevealed commitment is returned while still live and
// forfeited once expired.
func stakeReturned(esc *Escrow, c *DisputeCommitment, outcome Outcome, now int64) bool {
	if c.Revealed {
		switch {
		case c.Disputer == esc.Buyer:
			return outcome == OutcomeRefunded
		case c.Disputer == esc.Seller:
			return outcome == OutcomeReleased
		default:
			return false
		}
	}
	return !c.Expired(now)
}

func (e *Engine) settleStake(esc *Escrow, s *settlement) error {
	if s.returned {
		if err := e.transferOut(s.commit.Disputer, s.stake); err != nil {
			return err
		}
		e.emit(NewStakeSettledEvent(esc, s.commit, s.stake, StakeReturned))
		return nil
	}
	if _, err := e.distribute(s.stake); err != nil {
		return err
	}
	e.emit(NewStakeSettledEvent(esc, s.commit, s.stake, StakeForfeited))
	return nil
}

func (e *Engine) distribute(total *big.Int) ([]fees.Payout, error) {
	if total == nil || total.Sign() == 0 {
		return nil, nil
	}
	if e.fees == nil {
		return nil, errNilFees
	}
	payouts, err := e.fees.Distribute(total)
	if err != nil {
		return nil, fmt.Errorf("escrow: distribute fee: %w", err)
	}
	return payouts, nil
}

// Escrow returns a copy of the stored escrow.
func (e *Engine) Escrow(id [32]byte) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Commitment returns the outstanding dispute commitment for id, if any.
func (e *Engine) Commitment(id [32]byte) (*DisputeCommitment, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	c, ok, err := e.state.DisputeCommitmentGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return c.Clone(), true, nil
}

// HasVoted reports whether voter already voted on id.
func (e *Engine) HasVoted(id [32]byte, voter [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.EscrowHasVoted(id, voter)
}

// Amount returns the custody amount of a plaintext escrow.
func (e *Engine) Amount(id [32]byte) (*big.Int, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if esc.PrivacyMode {
		return nil, ErrModeMismatch
	}
	return cloneBigInt(esc.Amount), nil
}
