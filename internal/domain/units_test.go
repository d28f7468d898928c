package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_500_000), v)

	v, err = ParseAmount("1000", 18)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, want, v)

	// Sub-unit precision is truncated, not rounded.
	v, err = ParseAmount("0.0000019", 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)
}

func TestParseAmountInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "0"} {
		_, err := ParseAmount(in, 6)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", in)
	}
}

func TestRescaleDecimals(t *testing.T) {
	// 6-decimal collateral to 18-decimal debt multiplies by 10^12.
	v := RescaleDecimals(big.NewInt(1_000_000), 6, 18)
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Equal(t, want, v)

	// Scaling back down truncates.
	assert.Equal(t, big.NewInt(1_000_000), RescaleDecimals(want, 18, 6))
	assert.Equal(t, big.NewInt(42), RescaleDecimals(big.NewInt(42), 9, 9))
}

func TestFractionBps(t *testing.T) {
	// 50% LTV of 1000 units.
	assert.Equal(t, big.NewInt(500), FractionBps(big.NewInt(1000), 5000))
	// 5 bps flash-loan fee.
	assert.Equal(t, big.NewInt(50), FractionBps(big.NewInt(100_000), 5))
}

func TestMinOut(t *testing.T) {
	nominal := big.NewInt(1_000_000)

	// 5% tolerance yields exactly 95% of nominal.
	out := MinOut(nominal, 500)
	assert.Equal(t, big.NewInt(950_000), out)

	// The guard is always strictly below nominal for a positive tolerance.
	assert.Equal(t, -1, out.Cmp(nominal))

	// Zero tolerance keeps the nominal amount.
	assert.Equal(t, nominal, MinOut(nominal, 0))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0", FormatAmount(nil, 6))
}
