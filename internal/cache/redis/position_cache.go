package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinafi/leverbot/internal/domain"
)

// PositionCache implements domain.PositionCache using one Redis hash per
// user holding the JSON-serialized position list.
//
// Key schema:
//
//	positions:{address} - hash with field "data" containing a JSON array
//
// Addresses are lowercased before keying so lookups are case-insensitive.
// The whole key carries the cache TTL; on top of that each entry has its own
// timestamp, and reads drop entries older than the expiry window and write
// the compacted list back.
type PositionCache struct {
	rdb *redis.Client
	now func() time.Time
}

// NewPositionCache creates a PositionCache backed by the given Client.
func NewPositionCache(c *Client) *PositionCache {
	return &PositionCache{rdb: c.Underlying(), now: time.Now}
}

func positionsKey(user string) string {
	return "positions:" + domain.NormalizeAddress(user)
}

// GetCachedPositions returns the live entries for user. Expired entries are
// dropped and the compacted list is persisted best-effort; a missing key
// yields an empty slice, not an error.
func (pc *PositionCache) GetCachedPositions(ctx context.Context, user string) ([]domain.CachedPosition, error) {
	data, err := pc.rdb.HGet(ctx, positionsKey(user), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get positions for %s: %w", user, err)
	}

	var entries []domain.CachedPosition
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("redis: unmarshal positions for %s: %w", user, err)
	}

	kept, dropped := domain.TrimExpired(entries, pc.now(), domain.CacheTTL)
	if dropped {
		// Self-compaction; a write failure here only delays the next trim.
		_ = pc.write(ctx, user, kept)
	}
	return kept, nil
}

// SetCachedPositions replaces the entire cached list for user.
func (pc *PositionCache) SetCachedPositions(ctx context.Context, user string, positions []domain.CachedPosition) error {
	return pc.write(ctx, user, positions)
}

// AddOrUpdateCachedPosition upserts a single entry by position ID. Writing
// the same ID twice replaces the entry instead of duplicating it.
func (pc *PositionCache) AddOrUpdateCachedPosition(ctx context.Context, user string, p domain.CachedPosition) error {
	entries, err := pc.GetCachedPositions(ctx, user)
	if err != nil {
		return err
	}
	return pc.write(ctx, user, domain.UpsertByID(entries, p))
}

// RemoveCachedPosition deletes the entry with the given position ID. Removing
// an unknown ID is a no-op.
func (pc *PositionCache) RemoveCachedPosition(ctx context.Context, user string, id uint64) error {
	entries, err := pc.GetCachedPositions(ctx, user)
	if err != nil {
		return err
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return pc.write(ctx, user, kept)
}

// ClearCachedPositions drops the whole cached list for user.
func (pc *PositionCache) ClearCachedPositions(ctx context.Context, user string) error {
	if err := pc.rdb.Del(ctx, positionsKey(user)).Err(); err != nil {
		return fmt.Errorf("redis: clear positions for %s: %w", user, err)
	}
	return nil
}

func (pc *PositionCache) write(ctx context.Context, user string, entries []domain.CachedPosition) error {
	key := positionsKey(user)
	if len(entries) == 0 {
		if err := pc.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis: clear positions for %s: %w", user, err)
		}
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal positions for %s: %w", user, err)
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, domain.CacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set positions for %s: %w", user, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionCache = (*PositionCache)(nil)
