// internal/math/checked.go
package math

import (
	"fmt"
	"math/bits"
)

// Checked unsigned arithmetic for premium/reward/balance amounts.
// Overflow is an invariant violation, never a silent wrap: every caller must
// treat a returned error as fatal for the enclosing operation.

// ErrOverflow wraps all checked-arithmetic failures.
type OverflowError struct {
	Op   string
	A, B uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("unsigned %s overflow: a=%d b=%d", e.Op, e.A, e.B)
}

// Add returns a + b, failing on wraparound.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, &OverflowError{Op: "add", A: a, B: b}
	}
	return sum, nil
}

// Sub returns a - b, failing on underflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, &OverflowError{Op: "sub", A: a, B: b}
	}
	return diff, nil
}

// Mul returns a * b, failing if the product exceeds 64 bits.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, &OverflowError{Op: "mul", A: a, B: b}
	}
	return lo, nil
}

// MulDiv returns a * b / div with a 128-bit intermediate product.
// Division truncates toward zero. Fails if div is zero or the quotient
// does not fit in 64 bits.
func MulDiv(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, &OverflowError{Op: "div", A: a, B: b}
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= div {
		return 0, &OverflowError{Op: "muldiv", A: a, B: b}
	}
	quo, _ := bits.Div64(hi, lo, div)
	return quo, nil
}
