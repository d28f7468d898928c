package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const bpsDenominator = 10_000

// ParseAmount converts a user-supplied decimal string ("1.5") into the
// token's smallest integer unit. Unparsable or non-positive amounts are
// ErrInvalidInput.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not a number", ErrInvalidInput, s)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: amount %q must be positive", ErrInvalidInput, s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		scaled = scaled.Truncate(0)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders a smallest-unit amount as a decimal string.
func FormatAmount(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// RescaleDecimals converts an amount between tokens of different decimal
// precision, e.g. a 6-decimal collateral figure into an 18-decimal debt
// figure (multiply by 10^12). Scaling down truncates.
func RescaleDecimals(v *big.Int, from, to int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(v)
	switch {
	case to > from:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil)
		out.Mul(out, exp)
	case from > to:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil)
		out.Quo(out, exp)
	}
	return out
}

// FractionBps returns v * bps / 10000.
func FractionBps(v *big.Int, bps int64) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(v, big.NewInt(bps))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// MinOut applies a slippage guard: the result is v * (10000-slippageBps) /
// 10000, strictly below the nominal amount for any positive tolerance.
func MinOut(v *big.Int, slippageBps int64) *big.Int {
	return FractionBps(v, bpsDenominator-slippageBps)
}
