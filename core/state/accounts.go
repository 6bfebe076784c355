package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would exceed 256 bits.
	ErrBalanceOverflow = errors.New("state: balance overflow")
)

var balancePrefix = []byte("balance:")

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

// Balance returns the balance held by addr.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	data, err := m.get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetBalance stores the balance of addr. Balances are bounded to 256 bits.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	if addr == ([20]byte{}) {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrBalanceOverflow
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	m.put(balanceKey(addr), encoded)
	return nil
}

// Credit adds amount to the balance of addr.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("credit amount must not be negative")
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	bal, overflow := uint256.FromBig(current)
	if overflow {
		return ErrBalanceOverflow
	}
	add, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrBalanceOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(bal, add)
	if overflow {
		return ErrBalanceOverflow
	}
	return m.SetBalance(addr, sum.ToBig())
}

// Debit subtracts amount from the balance of addr.
func (m *Manager) Debit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("debit amount must not be negative")
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, amount)
	}
	return m.SetBalance(addr, current.Sub(current, amount))
}
