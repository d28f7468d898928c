package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cinafi/leverbot/internal/domain"
)

// releaseLua deletes a claim key only if its value matches the claimant's
// unique token, so one submission cannot release another's claim.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RequestGuard implements domain.RequestGuard using Redis SETNX with a TTL
// and a Lua-based conditional release. While a request ID is claimed, a
// second submission with the same ID is rejected instead of producing a
// second transaction.
type RequestGuard struct {
	rdb       *redis.Client
	releaseSc *redis.Script
}

// NewRequestGuard creates a RequestGuard backed by the given Client.
func NewRequestGuard(c *Client) *RequestGuard {
	return &RequestGuard{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
	}
}

func requestKey(id string) string {
	return "request:" + id
}

// Begin claims requestID for the given TTL. It returns
// domain.ErrDuplicateRequest when the ID is already claimed. The returned
// release function frees the claim early and is safe to call more than once;
// callers invoke it when the attempt fails before submission so an explicit
// retry can reuse the ID immediately.
func (g *RequestGuard) Begin(ctx context.Context, requestID string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	key := requestKey(requestID)

	ok, err := g.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: claim request %s: %w", requestID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, requestID)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so the release succeeds even when the caller's
		// context is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = g.releaseSc.Run(releaseCtx, g.rdb, []string{key}, token).Err()
	}

	return release, nil
}

// Compile-time interface check.
var _ domain.RequestGuard = (*RequestGuard)(nil)
