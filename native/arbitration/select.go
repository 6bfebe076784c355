package arbitration

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrEmptyPool is returned when no eligible arbitrator is available.
var ErrEmptyPool = errors.New("arbitration: no eligible arbitrators")

// SelectionInput binds the values that determine an escrow's arbitrator. The
// nonce stays hidden until the dispute is revealed, so the outcome cannot be
// predicted before then, yet anyone can recompute it afterwards.
type SelectionInput struct {
	CreatedAt int64
	Seed      Seed
	Nonce     [32]byte
	EscrowID  [32]byte
}

// Digest returns keccak256(createdAt || seed || nonce || escrowID).
func Digest(in SelectionInput) [32]byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(in.CreatedAt))
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(ts[:], in.Seed[:], in.Nonce[:], in.EscrowID[:]))
	return out
}

// Select maps the digest of in onto pool. The pool is canonicalised (sorted,
// deduplicated) first so callers passing the same set in any order get the
// same arbitrator.
func Select(in SelectionInput, pool [][20]byte) ([20]byte, error) {
	canonical := canonicalPool(pool)
	if len(canonical) == 0 {
		return [20]byte{}, ErrEmptyPool
	}
	digest := Digest(in)
	index := new(uint256.Int).SetBytes(digest[:])
	index.Mod(index, uint256.NewInt(uint64(len(canonical))))
	return canonical[index.Uint64()], nil
}

func canonicalPool(pool [][20]byte) [][20]byte {
	out := make([][20]byte, 0, len(pool))
	out = append(out, pool...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	deduped := out[:0]
	for i, addr := range out {
		if addr == ([20]byte{}) {
			continue
		}
		if i > 0 && addr == out[i-1] {
			continue
		}
		deduped = append(deduped, addr)
	}
	return deduped
}
