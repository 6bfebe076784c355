package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowchain/core/state"
	"escrowchain/storage"
)

func TestVaultMovesValueThroughCustody(t *testing.T) {
	mgr := state.NewManager(storage.NewMemDB())
	custody := [20]byte{0xEE}
	holder := [20]byte{0x01}
	payee := [20]byte{0x02}
	require.NoError(t, mgr.SetBalance(holder, big.NewInt(100)))

	vault, err := NewVault(mgr, custody)
	require.NoError(t, err)

	require.NoError(t, vault.TransferIn(holder, big.NewInt(60)))
	held, err := vault.Held()
	require.NoError(t, err)
	require.Equal(t, int64(60), held.Int64())

	require.NoError(t, vault.TransferOut(payee, big.NewInt(45)))
	bal, err := mgr.Balance(payee)
	require.NoError(t, err)
	require.Equal(t, int64(45), bal.Int64())

	err = vault.TransferOut(payee, big.NewInt(16))
	require.True(t, errors.Is(err, state.ErrInsufficientBalance))
	err = vault.TransferIn(holder, big.NewInt(41))
	require.True(t, errors.Is(err, state.ErrInsufficientBalance))

	require.NoError(t, vault.TransferIn(holder, big.NewInt(0)))
	require.ErrorIs(t, vault.TransferIn(holder, big.NewInt(-1)), ErrInvalidAmount)
}

func TestNewVaultValidation(t *testing.T) {
	_, err := NewVault(nil, [20]byte{0x01})
	require.Error(t, err)
	_, err = NewVault(state.NewManager(storage.NewMemDB()), [20]byte{})
	require.Error(t, err)
}
