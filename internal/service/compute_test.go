package service

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal: " + s)
	}
	return v
}

func TestLeverageToBps(t *testing.T) {
	assert.Equal(t, int64(10_000), LeverageToBps(1.0))
	assert.Equal(t, int64(20_000), LeverageToBps(2.0))
	assert.Equal(t, int64(25_000), LeverageToBps(2.5))
	assert.Equal(t, int64(33_000), LeverageToBps(3.3))
}

func TestWBTCForWRMB(t *testing.T) {
	// 1000 WRMB at 2x through the 790000 price divisor.
	wrmb := wei("1000000000000000000000")
	out := wbtcForWRMB(wrmb, 790_000, 20_000)

	// 1000e18 * 20000 / 790000 / 10000
	want := new(big.Int).Mul(wrmb, big.NewInt(20_000))
	want.Quo(want, big.NewInt(790_000))
	want.Quo(want, big.NewInt(10_000))
	assert.Equal(t, want, out)
	assert.Equal(t, "2531645569746835", out.String())
}

func TestMinMintForLeverage(t *testing.T) {
	collateral := wei("1000000000000000000000")
	// 2x leverage targets 2000 units of stable; the 500 bps tolerance floors
	// the mint at exactly 95% of that.
	assert.Equal(t, wei("1900000000000000000000"), minMintForLeverage(collateral, 20_000, 500))

	// Zero tolerance keeps the nominal target.
	assert.Equal(t, wei("2000000000000000000000"), minMintForLeverage(collateral, 20_000, 0))
}

func TestFlashLoanFee(t *testing.T) {
	// 5 bps on 10 WBTC.
	principal := wei("10000000000000000000")
	assert.Equal(t, wei("5000000000000000"), flashLoanFee(principal, 5))

	assert.Equal(t, big.NewInt(0).Sign(), flashLoanFee(big.NewInt(0), 5).Sign())
}

func TestParseDelta(t *testing.T) {
	v, err := parseDelta("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, wei("1500000000000000000"), v)

	// Negative deltas encode withdrawal and repayment.
	v, err = parseDelta("-0.25", 18)
	require.NoError(t, err)
	assert.Equal(t, wei("-250000000000000000"), v)

	v, err = parseDelta("", 18)
	require.NoError(t, err)
	assert.Zero(t, v.Sign())

	v, err = parseDelta("0", 6)
	require.NoError(t, err)
	assert.Zero(t, v.Sign())

	_, err = parseDelta("not-a-number", 18)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidLeverage(t *testing.T) {
	assert.True(t, validLeverage(1.0))
	assert.True(t, validLeverage(3.0))
	assert.True(t, validLeverage(10.0))

	assert.False(t, validLeverage(0.99))
	assert.False(t, validLeverage(10.01))
	assert.False(t, validLeverage(0))
	assert.False(t, validLeverage(-2))
}

func TestLeveragePlanConsistency(t *testing.T) {
	s := &PositionService{cfg: config.Defaults().Chain}

	wrmb := wei("5000000000000000000000")
	plan := s.PlanLeveragedOpen(wrmb, 3.0)
	require.Positive(t, plan.WBTCAmount.Sign())

	// The mint floor sits strictly below the leverage-scaled nominal, by
	// exactly the configured tolerance.
	nominal := domain.FractionBps(plan.WBTCAmount, 30_000)
	assert.Equal(t, -1, plan.MinFxUSDMint.Cmp(nominal))
	assert.Equal(t, domain.MinOut(nominal, s.cfg.SlippageBps), plan.MinFxUSDMint)
}

func TestEnsureRequestID(t *testing.T) {
	assert.Equal(t, "client-chosen", ensureRequestID("client-chosen"))

	generated := ensureRequestID("")
	_, err := uuid.Parse(generated)
	require.NoError(t, err)

	// Each absent id gets its own claim.
	assert.NotEqual(t, generated, ensureRequestID(""))
}
