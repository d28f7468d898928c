package redis

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigOptionsDefaults(t *testing.T) {
	opts := ClientConfig{Addr: "localhost:6379"}.options()

	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, defaultPoolSize, opts.PoolSize)
	assert.Equal(t, defaultMaxRetries, opts.MaxRetries)
	assert.Nil(t, opts.TLSConfig)
}

func TestClientConfigOptionsExplicit(t *testing.T) {
	opts := ClientConfig{
		Addr:       "redis.internal:6380",
		Password:   "secret",
		DB:         2,
		PoolSize:   50,
		MaxRetries: 1,
		TLSEnabled: true,
	}.options()

	assert.Equal(t, 50, opts.PoolSize)
	assert.Equal(t, 1, opts.MaxRetries)
	assert.Equal(t, 2, opts.DB)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
}
