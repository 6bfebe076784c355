// Package confidential defines the capability the escrow engine uses to hold
// amounts it must not observe in plaintext. Production deployments back it
// with an external confidential-compute service; Passthrough is a local
// stand-in for environments without one.
package confidential

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrUnknownHandle is returned when a handle was never committed.
	ErrUnknownHandle = errors.New("confidential: unknown handle")
	// ErrNegativeValue is returned when committing a negative amount.
	ErrNegativeValue = errors.New("confidential: negative value")
)

// Handle is an opaque reference to a confidential value.
type Handle [32]byte

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool { return h == Handle{} }

// String returns the 0x-prefixed hex encoding of the handle.
func (h Handle) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Adapter is the confidential value capability consumed by the escrow engine.
type Adapter interface {
	// Commit stores value and returns a handle that reveals nothing about it.
	Commit(value *big.Int) (Handle, error)
	// Decrypt returns the plaintext behind handle.
	Decrypt(h Handle) (*big.Int, error)
	// CompareGE reports whether the value behind a is >= the value behind b.
	CompareGE(a, b Handle) (bool, error)
}

// Store holds committed values. The host backs it with its state overlay, so
// values written by a call are committed or discarded together with it.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	saltKey = []byte("confidential/salt")
	seqKey  = []byte("confidential/seq")
)

func valueKey(h Handle) []byte {
	return []byte("confidential/value/" + hex.EncodeToString(h[:]))
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// KVPut implements Store.
func (m *MemoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = encoded
	return nil
}

// KVGet implements Store.
func (m *MemoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	m.mu.RLock()
	data, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// InitSalt returns the persisted handle salt, drawing one from rand on first
// use. An existing salt is never replaced, so handles stay stable across
// restarts.
func InitSalt(store Store, rand io.Reader) ([32]byte, error) {
	var salt [32]byte
	if store == nil {
		return salt, errors.New("confidential: store required")
	}
	var stored []byte
	ok, err := store.KVGet(saltKey, &stored)
	if err != nil {
		return salt, fmt.Errorf("confidential: load salt: %w", err)
	}
	if ok && len(stored) == len(salt) {
		copy(salt[:], stored)
		return salt, nil
	}
	if rand == nil {
		return salt, errors.New("confidential: entropy source required")
	}
	if _, err := io.ReadFull(rand, salt[:]); err != nil {
		return salt, fmt.Errorf("confidential: read entropy: %w", err)
	}
	if err := store.KVPut(saltKey, salt[:]); err != nil {
		return salt, fmt.Errorf("confidential: store salt: %w", err)
	}
	return salt, nil
}

// Passthrough keeps plaintext values in a Store keyed by salted handles. It
// offers no confidentiality and exists so the engine can run without a
// confidential-compute service.
type Passthrough struct {
	mu    sync.Mutex
	store Store
	salt  [32]byte
}

// NewPassthrough constructs a passthrough adapter over store whose handles are
// derived from salt and a persisted sequence.
func NewPassthrough(store Store, salt [32]byte) *Passthrough {
	return &Passthrough{store: store, salt: salt}
}

// Commit implements Adapter.
func (p *Passthrough) Commit(value *big.Int) (Handle, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return Handle{}, ErrNegativeValue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var seq uint64
	if _, err := p.store.KVGet(seqKey, &seq); err != nil {
		return Handle{}, fmt.Errorf("confidential: load sequence: %w", err)
	}
	seq++
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], seq)
	var h Handle
	copy(h[:], ethcrypto.Keccak256(p.salt[:], raw[:]))
	if err := p.store.KVPut(valueKey(h), value); err != nil {
		return Handle{}, err
	}
	if err := p.store.KVPut(seqKey, seq); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// Decrypt implements Adapter.
func (p *Passthrough) Decrypt(h Handle) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value := new(big.Int)
	ok, err := p.store.KVGet(valueKey(h), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return value, nil
}

// CompareGE implements Adapter.
func (p *Passthrough) CompareGE(a, b Handle) (bool, error) {
	left, err := p.Decrypt(a)
	if err != nil {
		return false, err
	}
	right, err := p.Decrypt(b)
	if err != nil {
		return false, err
	}
	return left.Cmp(right) >= 0, nil
}
