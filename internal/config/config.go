// Package config defines the top-level configuration for leverbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cinafi/leverbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEVERBOT_* environment variables. It
// is built once at startup and passed by injection; nothing reads it through
// an ambient singleton.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signing key credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// TokenConfig describes one configured ERC-20 token.
type TokenConfig struct {
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// ChainConfig holds the network selection and the fixed contract deployment
// the orchestrator talks to.
type ChainConfig struct {
	// Profile selects the deployment: "testnet" or "local".
	Profile     string                 `toml:"profile"`
	RPCURL      string                 `toml:"rpc_url"`
	ChainID     int64                  `toml:"chain_id"`
	Router      string                 `toml:"router"`
	PoolManager string                 `toml:"pool_manager"`
	LendingPool string                 `toml:"lending_pool"`
	DefaultPool string                 `toml:"default_pool"`
	Tokens      map[string]TokenConfig `toml:"tokens"`

	// FastLocal skips waiting for approval receipts on instant-mining
	// development chains.
	FastLocal bool `toml:"fast_local"`

	GasCeiling  uint64 `toml:"gas_ceiling"`
	GasFallback uint64 `toml:"gas_fallback"`

	ReceiptTimeout  duration `toml:"receipt_timeout"`
	ReceiptInterval duration `toml:"receipt_interval"`

	SlippageBps         int64 `toml:"slippage_bps"`
	WRMBPriceDivisor    int64 `toml:"wrmb_price_divisor"`
	FlashLoanPremiumBps int64 `toml:"flash_loan_premium_bps"`

	// RequestTTL is how long a request ID stays claimed by an in-flight
	// submission before an identical retry is accepted again.
	RequestTTL duration `toml:"request_ttl"`
}

// Meta converts the chain section into the immutable runtime description
// injected into services.
func (c ChainConfig) Meta() domain.ChainMeta {
	tokens := make(map[string]domain.Token, len(c.Tokens))
	for sym, t := range c.Tokens {
		tokens[sym] = domain.Token{Symbol: sym, Address: t.Address, Decimals: t.Decimals}
	}
	return domain.ChainMeta{
		ChainID:     c.ChainID,
		RPCURL:      c.RPCURL,
		Router:      c.Router,
		PoolManager: c.PoolManager,
		LendingPool: c.LendingPool,
		Tokens:      tokens,
	}
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the audit
// archiver. Leave Bucket empty to disable archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // requests per second per client, 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig controls the cold-storage export loop.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the testnet deployment and
// reasonable operational values. These match config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Profile:     "testnet",
			RPCURL:      "https://sepolia-rollup.arbitrum.io/rpc",
			ChainID:     421614,
			Router:      "0xB8B3e6C7D0f0A9754F383107A6CCEDD8F19343Ec",
			PoolManager: "0xbb644076500ea106d9029b382c4d49f56225cb82",
			LendingPool: "0x6Ae43d3271ff6888e7Fc43Fd7321a503ff738951",
			DefaultPool: "0xAb20B978021333091CA307BB09E022Cec26E8608",
			Tokens: map[string]TokenConfig{
				"WRMB":  {Address: "0x795751385c9ab8f832fda7f69a83e3804ee1d7f3", Decimals: 18},
				"WBTC":  {Address: "0x29f2D40B0605204364af54EC677bD022dA425d03", Decimals: 18},
				"FXUSD": {Address: "0x085a1b6da46ae375b35dea9920a276ef571e209c", Decimals: 18},
				"USDC":  {Address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", Decimals: 6},
				"STETH": {Address: "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84", Decimals: 18},
			},
			FastLocal:           false,
			GasCeiling:          3_000_000,
			GasFallback:         500_000,
			ReceiptTimeout:      duration{60 * time.Second},
			ReceiptInterval:     duration{2 * time.Second},
			SlippageBps:         500,
			WRMBPriceDivisor:    790_000,
			FlashLoanPremiumBps: 5,
			RequestTTL:          duration{5 * time.Minute},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "leverbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
		},
		Notify: NotifyConfig{
			Events: []string{"action_confirmed", "action_reverted", "flashloan_executed", "admin_updated", "error"},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProfiles = map[string]bool{
	"testnet": true,
	"local":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if !validProfiles[strings.ToLower(c.Chain.Profile)] {
		errs = append(errs, fmt.Sprintf("chain: unknown profile %q (valid: testnet, local)", c.Chain.Profile))
	}
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	for _, f := range []struct{ name, addr string }{
		{"router", c.Chain.Router},
		{"pool_manager", c.Chain.PoolManager},
		{"lending_pool", c.Chain.LendingPool},
	} {
		if !isHexAddress(f.addr) {
			errs = append(errs, fmt.Sprintf("chain: %s %q is not a valid address", f.name, f.addr))
		}
	}
	for sym, t := range c.Chain.Tokens {
		if !isHexAddress(t.Address) {
			errs = append(errs, fmt.Sprintf("chain: token %s address %q is not a valid address", sym, t.Address))
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			errs = append(errs, fmt.Sprintf("chain: token %s decimals must be 0-36, got %d", sym, t.Decimals))
		}
	}
	if c.Chain.SlippageBps < 0 || c.Chain.SlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("chain: slippage_bps must be 0-9999, got %d", c.Chain.SlippageBps))
	}
	if c.Chain.WRMBPriceDivisor <= 0 {
		errs = append(errs, "chain: wrmb_price_divisor must be > 0")
	}
	if c.Chain.GasFallback == 0 {
		errs = append(errs, "chain: gas_fallback must be > 0")
	}
	if c.Chain.GasCeiling > 0 && c.Chain.GasCeiling < c.Chain.GasFallback {
		errs = append(errs, "chain: gas_ceiling must not be below gas_fallback")
	}
	if c.Chain.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "chain: receipt_timeout must be > 0")
	}
	if c.Chain.ReceiptInterval.Duration <= 0 {
		errs = append(errs, "chain: receipt_interval must be > 0")
	}

	// Wallet — a key source is required for modes that submit transactions.
	needsWallet := c.Mode == "server" || c.Mode == "full"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive needs S3 when enabled.
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3.bucket must be set when archive.enabled is true")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "archive: s3.endpoint must be set when archive.enabled is true")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isHexAddress reports whether s looks like a 0x-prefixed 20-byte address.
func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
