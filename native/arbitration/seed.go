package arbitration

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"lukechampine.com/blake3"
)

const seedDomain = "escrow/arbitration/seed/v1"

var seedKey = []byte("arbitration/seed")

// Seed is the process-wide entropy mixed into every arbitrator selection. It
// is generated once at deployment, persisted, and never rewritten.
type Seed [32]byte

// IsZero reports whether the seed is unset.
func (s Seed) IsZero() bool { return s == Seed{} }

// String returns the hex encoding of the seed.
func (s Seed) String() string { return hex.EncodeToString(s[:]) }

type seedState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// NewSeed derives a seed from 64 bytes of rand and the deployment time.
func NewSeed(rand io.Reader, deployedAt time.Time) (Seed, error) {
	if rand == nil {
		return Seed{}, errors.New("arbitration: entropy source required")
	}
	var raw [64]byte
	if _, err := io.ReadFull(rand, raw[:]); err != nil {
		return Seed{}, fmt.Errorf("arbitration: read entropy: %w", err)
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(deployedAt.UTC().UnixNano()))
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(seedDomain))
	_, _ = h.Write(raw[:])
	_, _ = h.Write(ts[:])
	var seed Seed
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

// InitSeed returns the persisted seed, generating and storing one on first
// boot. Later calls never replace an existing seed.
func InitSeed(state seedState, rand io.Reader, now time.Time) (Seed, error) {
	if state == nil {
		return Seed{}, errors.New("arbitration: state not configured")
	}
	var stored []byte
	ok, err := state.KVGet(seedKey, &stored)
	if err != nil {
		return Seed{}, fmt.Errorf("arbitration: load seed: %w", err)
	}
	if ok && len(stored) == len(Seed{}) {
		var seed Seed
		copy(seed[:], stored)
		return seed, nil
	}
	seed, err := NewSeed(rand, now)
	if err != nil {
		return Seed{}, err
	}
	if err := state.KVPut(seedKey, seed[:]); err != nil {
		return Seed{}, fmt.Errorf("arbitration: store seed: %w", err)
	}
	return seed, nil
}
