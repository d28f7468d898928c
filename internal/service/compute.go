package service

import (
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cinafi/leverbot/internal/domain"
)

const bpsDenominator = 10_000

// LeverageToBps converts a leverage multiplier to basis points, e.g. 3.0x
// becomes 30000.
func LeverageToBps(leverage float64) int64 {
	return int64(math.Round(leverage * bpsDenominator))
}

// wbtcForWRMB sizes the WBTC leg of a leveraged open: the WRMB collateral is
// converted at the fixed price divisor and scaled by the leverage multiplier.
// Both tokens carry 18 decimals on this deployment, so no rescaling applies.
func wbtcForWRMB(wrmbWei *big.Int, priceDivisor, leverageBps int64) *big.Int {
	out := new(big.Int).Mul(wrmbWei, big.NewInt(leverageBps))
	out.Quo(out, big.NewInt(priceDivisor))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// minMintForLeverage is the slippage-bounded floor on minted stable: the
// leverage-scaled nominal reduced by the tolerance, always strictly below
// nominal for any positive tolerance.
func minMintForLeverage(collateralWei *big.Int, leverageBps, slippageBps int64) *big.Int {
	return domain.MinOut(domain.FractionBps(collateralWei, leverageBps), slippageBps)
}

// ensureRequestID fills in a server-generated request ID when the client did
// not supply one. A client-supplied ID makes dedup and retry explicit; a
// generated one still gets the duplicate guard for its own lifetime.
func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// flashLoanFee computes the premium charged on a flash-loaned principal.
func flashLoanFee(amount *big.Int, premiumBps int64) *big.Int {
	return domain.FractionBps(amount, premiumBps)
}

// parseDelta parses a signed decimal amount into the token's smallest unit.
// Unlike domain.ParseAmount it accepts negative values, which the operate
// flow uses for collateral withdrawal and debt repayment. Fractional dust
// beyond the token's decimals is truncated toward zero.
func parseDelta(s string, decimals int) (*big.Int, error) {
	if s == "" || s == "0" {
		return big.NewInt(0), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", domain.ErrInvalidInput, s, err)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// validLeverage bounds the leverage multiplier to the range the pools accept.
func validLeverage(leverage float64) bool {
	return leverage >= 1.0 && leverage <= 10.0
}
