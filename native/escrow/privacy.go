package escrow

import (
	"fmt"
	"math/big"
	"time"

	"escrowchain/native/confidential"
	"escrowchain/native/fees"
)

// reveal returns the plaintext of a custody value. Plaintext escrows hold it
// directly; private escrows resolve the handle through the confidential
// adapter and are only ever revealed when tokens move.
func (e *Engine) reveal(esc *Escrow, plain *big.Int, handle confidential.Handle) (*big.Int, error) {
	if !esc.PrivacyMode {
		return cloneBigInt(plain), nil
	}
	if handle.IsZero() {
		return big.NewInt(0), nil
	}
	if e.private == nil {
		return nil, ErrPrivacyUnavailable
	}
	value, err := e.private.Decrypt(handle)
	if err != nil {
		return nil, fmt.Errorf("escrow: decrypt: %w", err)
	}
	return value, nil
}

func (e *Engine) commitValue(value *big.Int) (confidential.Handle, error) {
	h, err := e.private.Commit(value)
	if err != nil {
		return confidential.Handle{}, fmt.Errorf("escrow: commit value: %w", err)
	}
	return h, nil
}

// CreatePrivateEscrow opens an escrow whose principal is held behind a
// confidential handle. The engine stores only handles for the principal, the
// fee and the required dispute stake.
func (e *Engine) CreatePrivateEscrow(buyer, seller [20]byte, amount confidential.Handle, duration time.Duration) (*Escrow, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if e.private == nil {
		return nil, ErrPrivacyUnavailable
	}
	if err := e.validateOpen(buyer, seller, duration); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: empty amount handle", ErrInvalidAmount)
	}
	principal, err := e.private.Decrypt(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if principal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	fee := fees.FeeFor(principal, e.params.FeeBps)
	feeHandle, err := e.commitValue(fee)
	if err != nil {
		return nil, err
	}
	stakeHandle, err := e.commitValue(e.RequiredStake(principal))
	if err != nil {
		return nil, err
	}
	if err := e.transferIn(buyer, new(big.Int).Add(principal, fee)); err != nil {
		return nil, err
	}
	return e.openEscrow(buyer, seller, duration, func(esc *Escrow) {
		esc.PrivacyMode = true
		esc.Amount = big.NewInt(0)
		esc.Fee = big.NewInt(0)
		esc.AmountHandle = amount
		esc.FeeHandle = feeHandle
		esc.StakeHandle = stakeHandle
	})
}

// CommitPrivateDispute is the private-mode counterpart of CommitDispute. The
// offered stake handle is compared against the escrow's required stake
// without revealing either.
func (e *Engine) CommitPrivateDispute(id [32]byte, caller [20]byte, commitment [32]byte, stake confidential.Handle) (*DisputeCommitment, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if !esc.PrivacyMode {
		return nil, fmt.Errorf("%w: use the plaintext dispute entry point", ErrModeMismatch)
	}
	if e.private == nil {
		return nil, ErrPrivacyUnavailable
	}
	expired, err := e.checkDisputable(esc, caller, commitment)
	if err != nil {
		return nil, err
	}
	if stake.IsZero() {
		return nil, fmt.Errorf("%w: empty stake handle", ErrInsufficientStake)
	}
	ok, err := e.private.CompareGE(stake, esc.StakeHandle)
	if err != nil {
		return nil, fmt.Errorf("escrow: compare stake: %w", err)
	}
	if !ok {
		return nil, ErrInsufficientStake
	}
	return e.recordCommitment(esc, caller, commitment, expired, func(c *DisputeCommitment) error {
		value, err := e.private.Decrypt(stake)
		if err != nil {
			return fmt.Errorf("escrow: decrypt: %w", err)
		}
		if err := e.transferIn(caller, value); err != nil {
			return err
		}
		c.Stake = big.NewInt(0)
		c.StakeHandle = stake
		return nil
	})
}

// AmountHandle returns the principal handle of a private escrow.
func (e *Engine) AmountHandle(id [32]byte) (confidential.Handle, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return confidential.Handle{}, err
	}
	if !esc.PrivacyMode {
		return confidential.Handle{}, ErrModeMismatch
	}
	return esc.AmountHandle, nil
}
