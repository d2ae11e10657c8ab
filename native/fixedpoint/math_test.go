package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func mantissa(t *testing.T, value string) *uint256.Int {
	t.Helper()
	parsed, err := uint256.FromDecimal(value)
	require.NoError(t, err)
	return parsed
}

func TestMulRescalesProduct(t *testing.T) {
	two := mantissa(t, "2000000000000000000")
	three := mantissa(t, "3000000000000000000")
	got, err := Mul(two, three)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "6000000000000000000"), got)
}

func TestMulDetectsOverflowBeforeRescale(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	_, err := Mul(huge, uint256.NewInt(4))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestDivTruncatesTowardZero(t *testing.T) {
	one := One()
	three := mantissa(t, "3000000000000000000")
	got, err := Div(one, three)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "333333333333333333"), got)
}

func TestDivByZero(t *testing.T) {
	_, err := Div(One(), uint256.NewInt(0))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestDivNumeratorOverflow(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	_, err := Div(huge, uint256.NewInt(7))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivFullPrecision(t *testing.T) {
	// 50 * 1.10 = 55 bond units of value, then priced 1:20000.
	repay := mantissa(t, "50000000000000000000")
	incentive := mantissa(t, "1100000000000000000")
	seizable, err := Mul(repay, incentive)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "55000000000000000000"), seizable)

	underlyingUsd := One()
	collateralUsd := mantissa(t, "20000000000000000000000")
	got, err := MulDiv(seizable, underlyingUsd, collateralUsd)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "2750000000000000"), got)
}

func TestMulDivChecksEachStep(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	_, err := MulDiv(huge, huge, huge)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = MulDiv(One(), One(), uint256.NewInt(0))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestScalarFor(t *testing.T) {
	scalar, err := ScalarFor(6)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "1000000000000"), scalar)

	scalar, err = ScalarFor(18)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1), scalar)

	_, err = ScalarFor(19)
	require.ErrorIs(t, err, ErrDecimalsOutOfRange)
}

func TestUpscaleDownscaleRoundTrip(t *testing.T) {
	scalar, err := ScalarFor(6)
	require.NoError(t, err)

	native := uint256.NewInt(2_750) // 0.00275 units at 6 decimals
	up, err := Upscale(native, scalar)
	require.NoError(t, err)
	require.Equal(t, mantissa(t, "2750000000000000"), up)

	down, err := Downscale(up, scalar)
	require.NoError(t, err)
	require.Equal(t, native, down)
}

func TestFromBigRejectsNegative(t *testing.T) {
	_, err := FromBig(big.NewInt(-1))
	require.ErrorIs(t, err, ErrNotUnsigned)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = FromBig(tooBig)
	require.ErrorIs(t, err, ErrNotUnsigned)

	got, err := FromBig(nil)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}
