// Package fixedpoint implements the overflow-checked unsigned arithmetic used
// by every ratio and price computation in the protocol. Values are integers
// scaled by 1e18 ("mantissas"); all operations are pure, deterministic and
// carried out in 256-bit integer space with no floating point anywhere.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow indicates a product left the representable 256-bit range.
	ErrOverflow = errors.New("fixedpoint: overflow")
	// ErrDivisionByZero indicates a zero divisor.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	// ErrDecimalsOutOfRange indicates an asset reporting more than 18 decimals.
	ErrDecimalsOutOfRange = errors.New("fixedpoint: decimals out of range")
	// ErrNotUnsigned indicates a negative or oversized big integer at the
	// conversion boundary.
	ErrNotUnsigned = errors.New("fixedpoint: value not an unsigned 256-bit integer")
)

// Decimals is the canonical fractional precision of a mantissa.
const Decimals = 18

// One returns the canonical scale unit (1e18) as a fresh value.
func One() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

// Mul returns floor(a*b / 1e18). The raw product is checked for 256-bit
// overflow before rescaling.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, One()), nil
}

// Div returns floor(a*1e18 / b), truncating toward zero. The upscaled
// numerator is checked for overflow independently of the final quotient.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	numerator, overflow := new(uint256.Int).MulOverflow(a, One())
	if overflow {
		return nil, ErrOverflow
	}
	return numerator.Div(numerator, b), nil
}

// MulDiv returns floor(a*b / den) at full intermediate precision. The multiply
// step is overflow-checked on its own, so callers composing several products
// never form an unchecked intermediate.
func MulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, den), nil
}

// Upscale multiplies the amount by a precomputed power-of-ten precision
// scalar, lifting a native-decimals amount to the canonical precision.
func Upscale(amount, scalar *uint256.Int) (*uint256.Int, error) {
	result, overflow := new(uint256.Int).MulOverflow(amount, scalar)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// Downscale divides the amount by the precision scalar, truncating toward
// zero, returning a canonical-precision amount to native decimals.
func Downscale(amount, scalar *uint256.Int) (*uint256.Int, error) {
	if scalar.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(amount, scalar), nil
}

// ScalarFor returns 10^(18-decimals), the precision scalar for an asset with
// the given native decimals.
func ScalarFor(decimals uint8) (*uint256.Int, error) {
	if decimals > Decimals {
		return nil, ErrDecimalsOutOfRange
	}
	scalar := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < Decimals-decimals; i++ {
		scalar.Mul(scalar, ten)
	}
	return scalar, nil
}

// FromBig converts a stored big integer into the unsigned working
// representation, rejecting negative values and 256-bit overflow.
func FromBig(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return uint256.NewInt(0), nil
	}
	if value.Sign() < 0 {
		return nil, ErrNotUnsigned
	}
	converted, overflow := uint256.FromBig(value)
	if overflow {
		return nil, ErrNotUnsigned
	}
	return converted, nil
}
