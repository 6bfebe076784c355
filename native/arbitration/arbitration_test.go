package arbitration

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

type kvState struct {
	data map[string][]byte
}

func newKVState() *kvState { return &kvState{data: make(map[string][]byte)} }

func (s *kvState) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := s.data[string(key)]
	if !ok {
		return false, nil
	}
	return true, rlp.DecodeBytes(raw, out)
}

func (s *kvState) KVPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	s.data[string(key)] = raw
	return nil
}

func (s *kvState) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := s.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	return s.KVPut(key, append(list, append([]byte(nil), value...)))
}

func addr(fill byte) [20]byte {
	var a [20]byte
	copy(a[:], bytes.Repeat([]byte{fill}, 20))
	return a
}

func TestSelectIsDeterministic(t *testing.T) {
	in := SelectionInput{CreatedAt: 1_700_000_000, Seed: Seed{1}, Nonce: [32]byte{2}, EscrowID: [32]byte{3}}
	pool := [][20]byte{addr(0x10), addr(0x20), addr(0x30)}

	first, err := Select(in, pool)
	require.NoError(t, err)
	reordered := [][20]byte{addr(0x30), addr(0x10), addr(0x20), addr(0x10)}
	second, err := Select(in, reordered)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Contains(t, pool, first)
}

func TestSelectDependsOnNonce(t *testing.T) {
	pool := make([][20]byte, 0, 16)
	for i := 1; i <= 16; i++ {
		pool = append(pool, addr(byte(i)))
	}
	seen := make(map[[20]byte]struct{})
	for n := 0; n < 64; n++ {
		in := SelectionInput{CreatedAt: 42, Seed: Seed{9}, Nonce: [32]byte{byte(n)}, EscrowID: [32]byte{7}}
		got, err := Select(in, pool)
		require.NoError(t, err)
		seen[got] = struct{}{}
	}
	require.Greater(t, len(seen), 1)
}

func TestSelectEmptyPool(t *testing.T) {
	_, err := Select(SelectionInput{}, nil)
	require.True(t, errors.Is(err, ErrEmptyPool))
	_, err = Select(SelectionInput{}, [][20]byte{{}})
	require.True(t, errors.Is(err, ErrEmptyPool))
}

func TestRegistryActiveAndEligible(t *testing.T) {
	reg := NewRegistry(newKVState())
	require.NoError(t, reg.Register(addr(0x30), "c", 1))
	require.NoError(t, reg.Register(addr(0x10), "a", 1))
	require.NoError(t, reg.Register(addr(0x20), "b", 1))
	require.True(t, errors.Is(reg.Register([20]byte{}, "", 1), ErrZeroAddress))

	active, err := reg.Active()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{addr(0x10), addr(0x20), addr(0x30)}, active)

	require.NoError(t, reg.SetActive(addr(0x20), false))
	eligible, err := reg.Eligible(addr(0x10))
	require.NoError(t, err)
	require.Equal(t, [][20]byte{addr(0x30)}, eligible)

	require.NoError(t, reg.Register(addr(0x20), "", 2))
	record, ok, err := reg.Get(addr(0x20))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, record.Active)
	require.Equal(t, "b", record.Label)
	require.Equal(t, uint64(1), record.RegisteredAt)

	require.True(t, errors.Is(reg.SetActive(addr(0x99), true), ErrUnknownArbitrator))
}

func TestInitSeedPersistsOnce(t *testing.T) {
	state := newKVState()
	now := time.Unix(1_700_000_000, 0)
	first, err := InitSeed(state, strings.NewReader(strings.Repeat("a", 64)), now)
	require.NoError(t, err)
	require.False(t, first.IsZero())

	second, err := InitSeed(state, strings.NewReader(strings.Repeat("b", 64)), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNewSeedRequiresEntropy(t *testing.T) {
	_, err := NewSeed(strings.NewReader("short"), time.Now())
	require.Error(t, err)
	a, err := NewSeed(strings.NewReader(strings.Repeat("x", 64)), time.Unix(1, 0))
	require.NoError(t, err)
	b, err := NewSeed(strings.NewReader(strings.Repeat("x", 64)), time.Unix(2, 0))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
