package fpmath

import (
	"math/big"
	"sync"
)

// All token amounts in the system are int64 in smallest units (1e6 per whole
// token). Shares and the rewards accumulator are also int64; the accumulator
// carries AccScale extra precision.
const (
	AmountScale int64 = 1_000_000     // 0.000001 token
	AccScale    int64 = 1_000_000_000 // rewards-per-share accumulator precision
)

// RoundingMode selects truncation behavior for Int128 division.
type RoundingMode int

const (
	RoundDown RoundingMode = iota // floor (default for share/payout math)
	RoundUp
)

// int128Pool recycles big.Int intermediates so the hot accounting path
// allocates close to nothing.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0)
	int128Pool.Put(v)
}

// MulDiv computes a * b / den using int128 intermediates, truncating toward
// zero. den must be non-zero; callers guard legitimate zero denominators
// (empty pools, fresh products) explicitly.
func MulDiv(a, b, den int64) int64 {
	return MulDivRound(a, b, den, RoundDown)
}

// MulDivRound is MulDiv with an explicit rounding mode.
func MulDivRound(a, b, den int64, mode RoundingMode) int64 {
	num := getInt128()
	tmp := getInt128()
	num.SetInt64(a)
	tmp.SetInt64(b)
	num.Mul(num, tmp)

	tmp.SetInt64(den)
	rem := getInt128()
	num.QuoRem(num, tmp, rem)

	// Operands are non-negative everywhere this is used; RoundUp is a plain
	// ceiling on the truncated quotient.
	result := num.Int64()
	if mode == RoundUp && rem.Sign() != 0 {
		result++
	}

	putInt128(num)
	putInt128(tmp)
	putInt128(rem)

	return result
}

// MulDiv3 computes a * b * c / den. Used by the premium formula where the
// product of three int64 factors can exceed 127 bits of neither int64 nor
// the naive pairwise approach.
func MulDiv3(a, b, c, den int64) int64 {
	num := getInt128()
	tmp := getInt128()
	num.SetInt64(a)
	tmp.SetInt64(b)
	num.Mul(num, tmp)
	tmp.SetInt64(c)
	num.Mul(num, tmp)
	tmp.SetInt64(den)
	num.Quo(num, tmp)

	result := num.Int64()

	putInt128(num)
	putInt128(tmp)

	return result
}

// Sqrt returns floor(sqrt(v)) for v >= 0. Bootstraps the stake-share exchange
// rate for the first deposit into an empty pool.
func Sqrt(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v < 2 {
		return v
	}

	// Newton's method on uint64; converges in a handful of iterations.
	x := uint64(v)
	r := x
	guess := (r + 1) / 2
	for guess < r {
		r = guess
		guess = (x/r + r) / 2
	}
	return int64(r)
}

// CeilDiv returns ceil(a / b) for positive a, b.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
