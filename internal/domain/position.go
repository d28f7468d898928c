package domain

import (
	"strings"
	"time"
)

// PositionSource records where a Position snapshot came from. Cache entries
// written right after a submit are placeholders: their debt figure is zero
// until a real on-chain read succeeds, and callers must not treat it as the
// true minted debt.
type PositionSource string

const (
	PositionSourceChain PositionSource = "chain"
	PositionSourceCache PositionSource = "cache"
)

// Position is a snapshot of a leveraged position. Amounts are always in the
// token's smallest integer unit; no fractional representation is persisted.
type Position struct {
	ID               uint64         `json:"id"`
	Pool             string         `json:"pool"`
	CollateralToken  string         `json:"collateral_token"`
	CollateralAmount BigInt         `json:"collateral_amount"`
	DebtAmount       BigInt         `json:"debt_amount"`
	HealthFactor     BigInt         `json:"health_factor"`
	Leverage         float64        `json:"leverage"`
	Source           PositionSource `json:"source"`
}

// CachedPosition is a Position plus ownership and freshness metadata as it is
// stored in the per-user cache.
type CachedPosition struct {
	Position
	UserAddress string `json:"user_address"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
}

// CacheTTL is how long a cached position stays visible before reads drop it.
const CacheTTL = 24 * time.Hour

// TrimExpired drops entries older than ttl relative to now and reports
// whether anything was removed, so callers can rewrite the compacted list.
func TrimExpired(entries []CachedPosition, now time.Time, ttl time.Duration) ([]CachedPosition, bool) {
	cutoff := now.Add(-ttl).UnixMilli()
	kept := entries[:0:0]
	for _, e := range entries {
		if e.Timestamp >= cutoff {
			kept = append(kept, e)
		}
	}
	return kept, len(kept) != len(entries)
}

// UpsertByID replaces the entry with a matching position ID or appends when
// none exists. Adding an existing ID never duplicates it.
func UpsertByID(entries []CachedPosition, p CachedPosition) []CachedPosition {
	for i, e := range entries {
		if e.ID == p.ID {
			entries[i] = p
			return entries
		}
	}
	return append(entries, p)
}

// NormalizeAddress lowercases a hex address so cache keys are
// case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// PoolInfo is the decoded result of a pool-manager getPoolInfo call.
type PoolInfo struct {
	CollateralCapacity BigInt `json:"collateral_capacity"`
	DebtCapacity       BigInt `json:"debt_capacity"`
	Gauge              string `json:"gauge"`
	Rewarder           string `json:"rewarder"`
}
