package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.LogLevel = "loud"
	cfg.Chain.Router = "not-an-address"
	cfg.Chain.SlippageBps = 10_000
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "router")
	assert.Contains(t, err.Error(), "slippage_bps")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateWalletRequiredForSubmitModes(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")

	cfg.Mode = "monitor"
	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"monitor\"\n\n[chain]\nslippage_bps = 300\n"), 0o600))

	t.Setenv("LEVERBOT_CHAIN_RPC_URL", "http://rpc.example:8545")
	t.Setenv("LEVERBOT_REDIS_ADDR", "redis.example:6379")
	t.Setenv("LEVERBOT_TOKEN_WBTC_ADDRESS", "0x29f2D40B0605204364af54EC677bD022dA425d03")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, int64(300), cfg.Chain.SlippageBps)
	assert.Equal(t, "http://rpc.example:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "redis.example:6379", cfg.Redis.Addr)
	assert.Equal(t, "0x29f2D40B0605204364af54EC677bD022dA425d03", cfg.Chain.Tokens["WBTC"].Address)

	// Untouched fields keep their defaults.
	assert.Equal(t, int64(421614), cfg.Chain.ChainID)
	assert.Equal(t, uint64(500_000), cfg.Chain.GasFallback)
}

func TestLoadLocalProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chain]\nprofile = \"local\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chain.RPCURL)
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.True(t, cfg.Chain.FastLocal)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "supersecret"
	cfg.Redis.Password = "hunter2"
	cfg.Server.APIKey = "key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Server.APIKey)

	// The original is untouched and slices are copied.
	assert.Equal(t, "supersecret", cfg.Wallet.PrivateKey)
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
