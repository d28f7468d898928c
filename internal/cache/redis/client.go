// Package redis backs the orchestrator's hot-path state: the per-user
// position cache, the request guard that deduplicates submissions, the
// sliding-window rate limiter and the action signal bus. Every component
// shares the single connection pool owned by Client.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pool floors applied when the configuration leaves them zero. The signal
// bus holds subscriber connections open for the lifetime of the process, so
// the pool needs headroom beyond the request-path commands.
const (
	defaultPoolSize   = 20
	defaultMaxRetries = 3
)

// ClientConfig holds the Redis connection parameters.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// options translates the config into driver options with the pool floors
// applied.
func (cfg ClientConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client owns the shared go-redis connection pool behind the cache, guard,
// limiter and bus constructors in this package.
type Client struct {
	rdb *redis.Client
}

// New connects and verifies the server answers before anything starts
// depending on it. The caller owns Close.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(cfg.options())
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping reports connection health; the health endpoint calls it per check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the raw driver client to the sibling components in this
// package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
