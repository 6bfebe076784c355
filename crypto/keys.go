package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the bech32 human-readable part of escrow account addresses.
const AddressPrefix = "esc"

// Address is a 20-byte account identifier rendered as bech32.
type Address [20]byte

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the 0x-prefixed hexadecimal form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether every byte is zero.
func (a Address) IsZero() bool { return a == Address{} }

// ParseAddress accepts either a bech32 address carrying AddressPrefix or a
// 40 digit hex string with optional 0x prefix.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), AddressPrefix+"1") {
		return decodeBech32(raw)
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(trimmed) != 40 {
		return Address{}, fmt.Errorf("address %q: expected 20 bytes", raw)
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", raw, err)
	}
	var addr Address
	copy(addr[:], decoded)
	return addr, nil
}

func decodeBech32(raw string) (Address, error) {
	prefix, decoded, err := bech32.Decode(raw)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long, got %d", len(conv))
	}
	var addr Address
	copy(addr[:], conv)
	return addr, nil
}

// PrivateKey is a secp256k1 key controlling an escrow account.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Address derives the account address from the public key.
func (k *PrivateKey) Address() Address {
	return Address(crypto.PubkeyToAddress(k.PublicKey))
}
