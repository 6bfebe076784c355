package confidential

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassthroughCommitDecrypt(t *testing.T) {
	p := NewPassthrough(NewMemoryStore(), [32]byte{1})
	h, err := p.Commit(big.NewInt(1000))
	require.NoError(t, err)
	require.False(t, h.IsZero())

	got, err := p.Decrypt(h)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.Int64())

	got.SetInt64(5)
	again, err := p.Decrypt(h)
	require.NoError(t, err)
	require.Equal(t, int64(1000), again.Int64())
}

func TestPassthroughHandlesDoNotRepeat(t *testing.T) {
	p := NewPassthrough(NewMemoryStore(), [32]byte{2})
	a, err := p.Commit(big.NewInt(7))
	require.NoError(t, err)
	b, err := p.Commit(big.NewInt(7))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPassthroughCompareGE(t *testing.T) {
	p := NewPassthrough(NewMemoryStore(), [32]byte{3})
	small, _ := p.Commit(big.NewInt(10))
	large, _ := p.Commit(big.NewInt(20))
	equal, _ := p.Commit(big.NewInt(10))

	ok, err := p.CompareGE(large, small)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = p.CompareGE(small, large)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = p.CompareGE(small, equal)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPassthroughRejectsUnknownAndNegative(t *testing.T) {
	p := NewPassthrough(NewMemoryStore(), [32]byte{})
	_, err := p.Decrypt(Handle{9})
	require.True(t, errors.Is(err, ErrUnknownHandle))
	_, err = p.Commit(big.NewInt(-1))
	require.True(t, errors.Is(err, ErrNegativeValue))
}

func TestPassthroughValuesOutliveAdapter(t *testing.T) {
	store := NewMemoryStore()
	first := NewPassthrough(store, [32]byte{4})
	h, err := first.Commit(big.NewInt(250))
	require.NoError(t, err)

	second := NewPassthrough(store, [32]byte{4})
	got, err := second.Decrypt(h)
	require.NoError(t, err)
	require.Equal(t, int64(250), got.Int64())

	next, err := second.Commit(big.NewInt(250))
	require.NoError(t, err)
	require.NotEqual(t, h, next)
}

func TestInitSaltIsStable(t *testing.T) {
	store := NewMemoryStore()
	salt, err := InitSalt(store, bytes.NewReader(bytes.Repeat([]byte{0x5A}, 32)))
	require.NoError(t, err)
	require.Equal(t, byte(0x5A), salt[0])

	again, err := InitSalt(store, nil)
	require.NoError(t, err)
	require.Equal(t, salt, again)

	_, err = InitSalt(NewMemoryStore(), nil)
	require.Error(t, err)
}
