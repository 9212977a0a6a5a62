// Package fixed provides the 1e18 fixed-point arithmetic used across the
// profit-and-loss engines. All operations truncate toward zero.
package fixed

import "math/big"

const scale = int64(1_000_000_000_000_000_000)

var scaleBig = big.NewInt(scale)

// Scale returns the 1e18 scaling factor as a fresh big.Int.
func Scale() *big.Int {
	return new(big.Int).Set(scaleBig)
}

// One returns the fixed-point representation of 1.0.
func One() *big.Int {
	return new(big.Int).Set(scaleBig)
}

// Mul multiplies two fixed-point values, truncating toward zero.
func Mul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, scaleBig)
}

// Div divides two fixed-point values, truncating toward zero. A zero
// denominator yields zero rather than panicking; callers validate first.
func Div(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, scaleBig)
	return scaled.Quo(scaled, b)
}

// MulDiv computes a*b/den with full intermediate precision, truncating toward
// zero. A zero denominator yields zero.
func MulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den)
}

// Copy returns a defensive copy, mapping nil to zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
