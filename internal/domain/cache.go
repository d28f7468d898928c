package domain

import (
	"context"
	"time"
)

// PositionCache is the per-user position snapshot store. It is a convenience
// cache only, never a source of truth for on-chain state: reads drop entries
// older than the expiry window and self-compact the stored list.
type PositionCache interface {
	GetCachedPositions(ctx context.Context, user string) ([]CachedPosition, error)
	SetCachedPositions(ctx context.Context, user string, positions []CachedPosition) error
	AddOrUpdateCachedPosition(ctx context.Context, user string, p CachedPosition) error
	RemoveCachedPosition(ctx context.Context, user string, id uint64) error
	ClearCachedPositions(ctx context.Context, user string) error
}

// RequestGuard enforces one in-flight submission per request ID.
type RequestGuard interface {
	// Begin claims the request ID for the given TTL. It returns
	// ErrDuplicateRequest when the ID is already claimed, and a release
	// function that frees the claim early (used when the attempt fails
	// before submission so an explicit retry can reuse the ID).
	Begin(ctx context.Context, requestID string, ttl time.Duration) (release func(), err error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for status events and durable streams for
// consumers that must not miss messages.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
