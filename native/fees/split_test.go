package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	treasury   = [20]byte{0x01}
	staking    = [20]byte{0x02}
	validators = [20]byte{0x03}
)

func TestSplitDefaultShares(t *testing.T) {
	parts, err := Split(big.NewInt(1000), DefaultShares(treasury, staking, validators))
	require.NoError(t, err)
	require.Equal(t, "700", parts[0].String())
	require.Equal(t, "200", parts[1].String())
	require.Equal(t, "100", parts[2].String())
}

func TestSplitLastShareAbsorbsRemainder(t *testing.T) {
	shares := []Share{
		{Name: "a", Recipient: treasury, Bps: 3_333},
		{Name: "b", Recipient: staking, Bps: 3_333},
		{Name: "c", Recipient: validators, Bps: 3_334},
	}
	for _, total := range []int64{0, 1, 2, 7, 99, 1001, 123_456_789} {
		parts, err := Split(big.NewInt(total), shares)
		require.NoError(t, err)
		sum := new(big.Int)
		for _, part := range parts {
			require.GreaterOrEqual(t, part.Sign(), 0)
			sum.Add(sum, part)
		}
		require.Equal(t, total, sum.Int64(), "total %d", total)
	}
}

func TestSplitLargeTotals(t *testing.T) {
	total, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)
	parts, err := Split(total, DefaultShares(treasury, staking, validators))
	require.NoError(t, err)
	sum := new(big.Int)
	for _, part := range parts {
		sum.Add(sum, part)
	}
	require.Zero(t, sum.Cmp(total))

	tooBig := new(big.Int).Add(total, big.NewInt(1))
	_, err = Split(tooBig, DefaultShares(treasury, staking, validators))
	require.True(t, errors.Is(err, ErrInvalidTotal))
}

func TestValidateShares(t *testing.T) {
	require.True(t, errors.Is(ValidateShares(nil), ErrInvalidShares))
	require.True(t, errors.Is(ValidateShares([]Share{{Name: "a", Recipient: treasury, Bps: 9_999}}), ErrInvalidShares))
	require.True(t, errors.Is(ValidateShares([]Share{
		{Name: "a", Recipient: treasury, Bps: 5_000},
		{Name: "a", Recipient: staking, Bps: 5_000},
	}), ErrInvalidShares))
	require.True(t, errors.Is(ValidateShares([]Share{{Name: "a", Bps: 10_000}}), ErrInvalidShares))
	require.NoError(t, ValidateShares([]Share{{Name: "all", Recipient: treasury, Bps: 10_000}}))
}

func TestFeeFor(t *testing.T) {
	require.Equal(t, "5", FeeFor(big.NewInt(1000), 50).String())
	require.Equal(t, "0", FeeFor(big.NewInt(1), 50).String())
	require.Equal(t, "0", FeeFor(nil, 50).String())
	require.Equal(t, "0", FeeFor(big.NewInt(1000), 0).String())
}
