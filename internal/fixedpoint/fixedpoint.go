// Package fixedpoint implements overflow-checked integer arithmetic at a
// 10^6 scale. Products are formed in a 256-bit intermediate so that a*b never
// wraps before the division.
package fixedpoint

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Scale is the fixed-point denominator for prices and ppm rates.
const Scale uint64 = 1_000_000

// Half is the 50% price.
const Half uint64 = Scale / 2

// MulDiv returns floor(a*b/c). A zero divisor or a quotient that does not fit
// in 64 bits yields domain.ErrArithmeticOverflow.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(c))
	if !x.IsUint64() {
		return 0, domain.ErrArithmeticOverflow
	}
	return x.Uint64(), nil
}

// MulDivOrZero is MulDiv with a zero divisor short-circuiting to 0.
func MulDivOrZero(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, nil
	}
	return MulDiv(a, b, c)
}

// ScaleBy returns amount*rate/Scale, rate in ppm.
func ScaleBy(amount uint64, rate uint64) (uint64, error) {
	return MulDiv(amount, rate, Scale)
}

// Add returns a+b or domain.ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, domain.ErrArithmeticOverflow
	}
	return s, nil
}

// Sum adds all values with overflow checking.
func Sum(vals ...uint64) (uint64, error) {
	var total uint64
	for _, v := range vals {
		var err error
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Sub returns a-b, or underflow when b > a.
func Sub(a, b uint64, underflow error) (uint64, error) {
	if b > a {
		return 0, underflow
	}
	return a - b, nil
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Complement returns Scale-p, saturating at zero.
func Complement(p uint64) uint64 {
	if p >= Scale {
		return 0
	}
	return Scale - p
}

// ValidPrice reports whether p lies in [0, Scale].
func ValidPrice(p uint64) bool { return p <= Scale }
