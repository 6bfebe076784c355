package bank

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilBalances = errors.New("bank: balance store required")
	// ErrInvalidAmount is returned for negative or nil transfer amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")
)

// Balances is the account store the vault moves value through.
type Balances interface {
	Balance(addr [20]byte) (*big.Int, error)
	Credit(addr [20]byte, amount *big.Int) error
	Debit(addr [20]byte, amount *big.Int) error
}

// Vault holds escrowed value in a dedicated custody account. It implements the
// ledger consumed by the escrow engine and the fee distributor.
type Vault struct {
	balances Balances
	custody  [20]byte
}

// NewVault binds a vault to the custody address.
func NewVault(balances Balances, custody [20]byte) (*Vault, error) {
	if balances == nil {
		return nil, errNilBalances
	}
	if custody == ([20]byte{}) {
		return nil, fmt.Errorf("bank: custody address required")
	}
	return &Vault{balances: balances, custody: custody}, nil
}

// Custody returns the custody account address.
func (v *Vault) Custody() [20]byte { return v.custody }

// Held returns the value currently in custody.
func (v *Vault) Held() (*big.Int, error) {
	return v.balances.Balance(v.custody)
}

// TransferIn moves amount from the holder into custody.
func (v *Vault) TransferIn(from [20]byte, amount *big.Int) error {
	return v.move(from, v.custody, amount)
}

// TransferOut moves amount from custody to the recipient.
func (v *Vault) TransferOut(to [20]byte, amount *big.Int) error {
	return v.move(v.custody, to, amount)
}

func (v *Vault) move(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("bank: transfer to self")
	}
	if err := v.balances.Debit(from, amount); err != nil {
		return fmt.Errorf("bank: debit %x: %w", from[:4], err)
	}
	if err := v.balances.Credit(to, amount); err != nil {
		return fmt.Errorf("bank: credit %x: %w", to[:4], err)
	}
	return nil
}
