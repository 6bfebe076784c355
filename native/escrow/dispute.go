package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"escrowchain/native/arbitration"
	"escrowchain/native/common"
	"escrowchain/native/fees"
)

// RequiredStake returns the dispute stake for a principal. A non-zero stake
// rate never yields a free dispute: the stake is at least one unit.
func (e *Engine) RequiredStake(amount *big.Int) *big.Int {
	stake := fees.FeeFor(amount, e.params.DisputeStakeBps)
	if stake.Sign() == 0 && e.params.DisputeStakeBps > 0 && amount != nil && amount.Sign() > 0 {
		return big.NewInt(1)
	}
	return stake
}

// CommitDispute records a hiding dispute commitment on a plaintext escrow and
// locks the caller's stake. The commitment must equal
// ComputeCommitment(id, nonce, caller) for a nonce revealed later.
func (e *Engine) CommitDispute(id [32]byte, caller [20]byte, commitment [32]byte, stake *big.Int) (*DisputeCommitment, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if esc.PrivacyMode {
		return nil, fmt.Errorf("%w: use the private dispute entry point", ErrModeMismatch)
	}
	expired, err := e.checkDisputable(esc, caller, commitment)
	if err != nil {
		return nil, err
	}
	required := e.RequiredStake(esc.Amount)
	if stake == nil || stake.Sign() < 0 || stake.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: need %s", ErrInsufficientStake, required)
	}
	locked := cloneBigInt(stake)
	return e.recordCommitment(esc, caller, commitment, expired, func(c *DisputeCommitment) error {
		if err := e.transferIn(caller, locked); err != nil {
			return err
		}
		c.Stake = locked
		return nil
	})
}

// checkDisputable enforces the preconditions shared by both commit entry
// points. It returns an expired predecessor commitment, if any, which the
// caller forfeits once every check has passed.
func (e *Engine) checkDisputable(esc *Escrow, caller [20]byte, commitment [32]byte) (*DisputeCommitment, error) {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if !esc.IsParty(caller) {
		return nil, ErrNotParticipant
	}
	if esc.Resolved {
		return nil, ErrAlreadyResolved
	}
	if esc.Disputed {
		return nil, ErrAlreadyDisputed
	}
	now := e.now()
	eligibleAt := esc.CreatedAt + int64(e.params.ArbitratorDelay/time.Second)
	if now < eligibleAt {
		return nil, fmt.Errorf("%w: disputes open at %d", ErrTooEarlyForDispute, eligibleAt)
	}
	if commitment == ([32]byte{}) {
		return nil, fmt.Errorf("%w: empty commitment", ErrInvalidCommitment)
	}
	existing, ok, err := e.state.DisputeCommitmentGet(esc.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if !existing.Expired(now) {
		return nil, fmt.Errorf("%w: reveal window open until %d", ErrCommitmentPending, existing.RevealDeadline)
	}
	return existing, nil
}

func (e *Engine) consumeDisputeQuota(caller [20]byte, now int64) error {
	quota := e.params.DisputeQuota
	if !quota.Enabled() {
		return nil
	}
	prev, err := e.state.DisputeQuotaGet(caller)
	if err != nil {
		return err
	}
	next, err := common.CheckQuota(quota, quota.Epoch(now), prev, 1)
	if err != nil {
		if errors.Is(err, common.ErrQuotaExceeded) {
			return fmt.Errorf("%w: %d per epoch", ErrDisputeQuota, quota.MaxPerEpoch)
		}
		return err
	}
	return e.state.DisputeQuotaPut(caller, next)
}

func (e *Engine) recordCommitment(esc *Escrow, caller [20]byte, commitment [32]byte, expired *DisputeCommitment, lock func(*DisputeCommitment) error) (*DisputeCommitment, error) {
	now := e.now()
	if err := e.consumeDisputeQuota(caller, now); err != nil {
		return nil, err
	}
	if expired != nil {
		if err := e.forfeitCommitment(esc, expired); err != nil {
			return nil, err
		}
	}
	c := &DisputeCommitment{
		EscrowID:       esc.ID,
		Commitment:     commitment,
		Disputer:       caller,
		CommittedAt:    now,
		RevealDeadline: now + int64(e.params.RevealWindow/time.Second),
	}
	if err := lock(c); err != nil {
		return nil, err
	}
	if err := e.state.DisputeCommitmentPut(c); err != nil {
		return nil, err
	}
	e.emit(NewDisputeCommittedEvent(esc, c))
	return c.Clone(), nil
}

// RevealDispute opens the caller's commitment with nonce, marks the escrow
// disputed and assigns an arbitrator from the eligible pool.
func (e *Engine) RevealDispute(id [32]byte, caller [20]byte, nonce [32]byte) (*Escrow, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !esc.IsParty(caller) {
		return nil, ErrNotParticipant
	}
	if esc.Resolved {
		return nil, ErrAlreadyResolved
	}
	if esc.Disputed {
		return nil, ErrAlreadyDisputed
	}
	c, ok, err := e.state.DisputeCommitmentGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCommitment
	}
	if c.Revealed {
		return nil, ErrAlreadyDisputed
	}
	if c.Expired(e.now()) {
		return nil, fmt.Errorf("%w: deadline %d", ErrRevealWindowExpired, c.RevealDeadline)
	}
	if ComputeCommitment(id, nonce, caller) != c.Commitment {
		return nil, ErrInvalidCommitment
	}
	if e.pool == nil {
		return nil, errNilPool
	}
	pool, err := e.pool.Eligible(esc.Buyer, esc.Seller)
	if err != nil {
		return nil, err
	}
	arbitrator, err := arbitration.Select(arbitration.SelectionInput{
		CreatedAt: esc.CreatedAt,
		Seed:      e.seed,
		Nonce:     nonce,
		EscrowID:  id,
	}, pool)
	if errors.Is(err, arbitration.ErrEmptyPool) {
		return nil, ErrNoEligibleArbitrator
	}
	if err != nil {
		return nil, err
	}

	c.Revealed = true
	esc.Disputed = true
	esc.Arbitrator = arbitrator
	if err := e.state.DisputeCommitmentPut(c); err != nil {
		return nil, err
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewDisputedEvent(esc, c))
	return esc.Clone(), nil
}

// ExpireCommitment forfeits the stake of a commitment whose reveal window has
// closed unrevealed, freeing the escrow for a new dispute. Anyone may call it.
func (e *Engine) ExpireCommitment(id [32]byte) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	c, ok, err := e.state.DisputeCommitmentGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCommitment
	}
	if c.Revealed {
		return ErrAlreadyDisputed
	}
	if !c.Expired(e.now()) {
		return fmt.Errorf("%w: reveal window open until %d", ErrCommitmentNotExpired, c.RevealDeadline)
	}
	return e.forfeitCommitment(esc, c)
}

func (e *Engine) forfeitCommitment(esc *Escrow, c *DisputeCommitment) error {
	stake, err := e.reveal(esc, c.Stake, c.StakeHandle)
	if err != nil {
		return err
	}
	if err := e.state.DisputeCommitmentDelete(esc.ID); err != nil {
		return err
	}
	if _, err := e.distribute(stake); err != nil {
		return err
	}
	e.emit(NewStakeSettledEvent(esc, c, stake, StakeForfeited))
	return nil
}
