package fees

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// BasisPoints is the denominator every share is expressed against.
const BasisPoints = 10_000

var (
	// ErrInvalidShares is returned when the share table is empty, unnamed or
	// does not sum to BasisPoints.
	ErrInvalidShares = errors.New("fees: invalid share table")
	// ErrInvalidTotal is returned for negative or oversized totals.
	ErrInvalidTotal = errors.New("fees: invalid total")
)

// Share names one recipient of a settlement fee and its weight in basis points.
type Share struct {
	Name      string
	Recipient [20]byte
	Bps       uint32
}

// DefaultShares returns the 70/20/10 treasury, staking and validator split.
func DefaultShares(treasury, staking, validators [20]byte) []Share {
	return []Share{
		{Name: "treasury", Recipient: treasury, Bps: 7_000},
		{Name: "staking", Recipient: staking, Bps: 2_000},
		{Name: "validators", Recipient: validators, Bps: 1_000},
	}
}

// ValidateShares ensures the table is non-empty, uniquely named and sums to
// BasisPoints exactly.
func ValidateShares(shares []Share) error {
	if len(shares) == 0 {
		return fmt.Errorf("%w: no shares configured", ErrInvalidShares)
	}
	seen := make(map[string]struct{}, len(shares))
	var sum uint64
	for _, share := range shares {
		name := strings.TrimSpace(share.Name)
		if name == "" {
			return fmt.Errorf("%w: share name required", ErrInvalidShares)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate share %q", ErrInvalidShares, name)
		}
		seen[name] = struct{}{}
		if share.Recipient == ([20]byte{}) {
			return fmt.Errorf("%w: share %q has no recipient", ErrInvalidShares, name)
		}
		sum += uint64(share.Bps)
	}
	if sum != BasisPoints {
		return fmt.Errorf("%w: shares sum to %d bps", ErrInvalidShares, sum)
	}
	return nil
}

// Split divides total across shares. Every share but the last is computed as
// total*bps/BasisPoints rounding down; the last receives whatever remains so
// the parts always sum to total.
func Split(total *big.Int, shares []Share) ([]*big.Int, error) {
	if err := ValidateShares(shares); err != nil {
		return nil, err
	}
	if total == nil {
		total = big.NewInt(0)
	}
	if total.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative", ErrInvalidTotal)
	}
	amount, overflow := uint256.FromBig(total)
	if overflow {
		return nil, fmt.Errorf("%w: exceeds 256 bits", ErrInvalidTotal)
	}
	denominator := uint256.NewInt(BasisPoints)
	parts := make([]*big.Int, len(shares))
	distributed := new(uint256.Int)
	for i, share := range shares[:len(shares)-1] {
		part, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(share.Bps)), denominator)
		distributed.Add(distributed, part)
		parts[i] = part.ToBig()
	}
	parts[len(shares)-1] = new(uint256.Int).Sub(amount, distributed).ToBig()
	return parts, nil
}

// FeeFor returns amount*bps/BasisPoints rounded down.
func FeeFor(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return fee.Div(fee, big.NewInt(BasisPoints))
}
