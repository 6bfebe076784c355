package fees

import (
	"errors"
	"fmt"
	"math/big"
)

// Ledger credits fee recipients out of escrow custody.
type Ledger interface {
	TransferOut(to [20]byte, amount *big.Int) error
}

// Payout records the amount credited to a single share.
type Payout struct {
	Name      string
	Recipient [20]byte
	Amount    *big.Int
}

// Distributor splits settlement fees across a fixed share table and credits
// each recipient through the ledger.
type Distributor struct {
	ledger Ledger
	shares []Share
}

// NewDistributor validates shares and binds them to ledger.
func NewDistributor(ledger Ledger, shares []Share) (*Distributor, error) {
	if ledger == nil {
		return nil, errors.New("fees: ledger not configured")
	}
	if err := ValidateShares(shares); err != nil {
		return nil, err
	}
	return &Distributor{ledger: ledger, shares: append([]Share(nil), shares...)}, nil
}

// Shares returns a copy of the configured share table.
func (d *Distributor) Shares() []Share {
	if d == nil {
		return nil
	}
	return append([]Share(nil), d.shares...)
}

// Distribute splits total and transfers each non-zero part. A failed transfer
// aborts the distribution; the caller's transaction rolls back the parts
// already credited.
func (d *Distributor) Distribute(total *big.Int) ([]Payout, error) {
	if d == nil {
		return nil, errors.New("fees: distributor not configured")
	}
	parts, err := Split(total, d.shares)
	if err != nil {
		return nil, err
	}
	payouts := make([]Payout, len(parts))
	for i, part := range parts {
		share := d.shares[i]
		payouts[i] = Payout{Name: share.Name, Recipient: share.Recipient, Amount: part}
		if part.Sign() == 0 {
			continue
		}
		if err := d.ledger.TransferOut(share.Recipient, part); err != nil {
			return nil, fmt.Errorf("fees: credit %s: %w", share.Name, err)
		}
	}
	return payouts, nil
}
