package domain

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cached(id uint64, age time.Duration, now time.Time) CachedPosition {
	return CachedPosition{
		Position:    Position{ID: id, Source: PositionSourceCache},
		UserAddress: "0xabc",
		Timestamp:   now.Add(-age).UnixMilli(),
	}
}

func TestTrimExpired(t *testing.T) {
	now := time.Now()
	entries := []CachedPosition{
		cached(1, time.Hour, now),
		cached(2, 25*time.Hour, now),
		cached(3, 23*time.Hour, now),
	}

	kept, dropped := TrimExpired(entries, now, CacheTTL)
	assert.True(t, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, uint64(1), kept[0].ID)
	assert.Equal(t, uint64(3), kept[1].ID)

	// A second pass drops nothing.
	again, dropped := TrimExpired(kept, now, CacheTTL)
	assert.False(t, dropped)
	assert.Equal(t, kept, again)
}

func TestUpsertByIDIdempotent(t *testing.T) {
	now := time.Now()
	entries := []CachedPosition{cached(1, 0, now), cached(2, 0, now)}

	replacement := cached(2, 0, now)
	replacement.Leverage = 3.0
	entries = UpsertByID(entries, replacement)

	require.Len(t, entries, 2)
	assert.Equal(t, 3.0, entries[1].Leverage)

	entries = UpsertByID(entries, cached(7, 0, now))
	assert.Len(t, entries, 3)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xABCdef "))
}

func TestBigIntJSON(t *testing.T) {
	p := Position{
		ID:               9,
		CollateralAmount: NewBigInt(big.NewInt(1_000_000)),
		DebtAmount:       NewBigInt(nil),
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"collateral_amount":"1000000"`)
	assert.Contains(t, string(data), `"debt_amount":"0"`)

	var back Position
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, back.CollateralAmount.Value().Cmp(big.NewInt(1_000_000)))

	var bad BigInt
	assert.Error(t, json.Unmarshal([]byte(`"12x"`), &bad))
}
