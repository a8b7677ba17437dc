package settlement

import (
	"fmt"
	"math/bits"
)

// ComputeMakerFillAmount returns the maker asset owed for takerFillAmount at
// the order rate, rounded down: floor(takerFillAmount * makerAmount / takerAmount).
// This is the exact-input direction; the truncation always favors the maker.
// The product is computed in 128 bits, so it only fails when the quotient
// itself does not fit in a u64 or takerAmount is zero.
func ComputeMakerFillAmount(takerFillAmount, makerAmount, takerAmount uint64) (uint64, error) {
	return mulDiv(takerFillAmount, makerAmount, takerAmount)
}

// ComputeTakerFillAmount returns the taker asset to pay for makerFillAmount in
// exact-output fills: floor(makerFillAmount * takerAmount / makerAmount) + 1.
// The extra unit over-collects so truncation never leaves the maker short;
// filling the result back through ComputeMakerFillAmount yields at least
// makerFillAmount.
func ComputeTakerFillAmount(makerFillAmount, makerAmount, takerAmount uint64) (uint64, error) {
	q, err := mulDiv(makerFillAmount, takerAmount, makerAmount)
	if err != nil {
		return 0, err
	}
	sum, carry := bits.Add64(q, 1, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: taker fill amount overflows u64", ErrInvalidParam)
	}
	return sum, nil
}

func mulDiv(a, b, divisor uint64) (uint64, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("%w: zero order amount", ErrInvalidParam)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= divisor {
		return 0, fmt.Errorf("%w: fill amount overflows u64", ErrInvalidParam)
	}
	q, _ := bits.Div64(hi, lo, divisor)
	return q, nil
}
