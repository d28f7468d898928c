package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEVERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	applyProfile(&cfg)

	return &cfg, nil
}

// applyProfile swaps in the local development deployment when the profile is
// "local" and the operator did not point rpc_url somewhere explicitly.
func applyProfile(cfg *Config) {
	if strings.ToLower(cfg.Chain.Profile) != "local" {
		return
	}
	if cfg.Chain.RPCURL == "" || cfg.Chain.RPCURL == Defaults().Chain.RPCURL {
		cfg.Chain.RPCURL = "http://127.0.0.1:8545"
	}
	if cfg.Chain.ChainID == Defaults().Chain.ChainID {
		cfg.Chain.ChainID = 31337
	}
	cfg.Chain.FastLocal = true
}

// applyEnvOverrides reads well-known LEVERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "LEVERBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "LEVERBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "LEVERBOT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.Profile, "LEVERBOT_CHAIN_PROFILE")
	setStr(&cfg.Chain.RPCURL, "LEVERBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "LEVERBOT_CHAIN_ID")
	setStr(&cfg.Chain.Router, "LEVERBOT_CHAIN_ROUTER")
	setStr(&cfg.Chain.PoolManager, "LEVERBOT_CHAIN_POOL_MANAGER")
	setStr(&cfg.Chain.LendingPool, "LEVERBOT_CHAIN_LENDING_POOL")
	setStr(&cfg.Chain.DefaultPool, "LEVERBOT_CHAIN_DEFAULT_POOL")
	setBool(&cfg.Chain.FastLocal, "LEVERBOT_CHAIN_FAST_LOCAL")
	setUint64(&cfg.Chain.GasCeiling, "LEVERBOT_CHAIN_GAS_CEILING")
	setUint64(&cfg.Chain.GasFallback, "LEVERBOT_CHAIN_GAS_FALLBACK")
	setDuration(&cfg.Chain.ReceiptTimeout, "LEVERBOT_CHAIN_RECEIPT_TIMEOUT")
	setDuration(&cfg.Chain.ReceiptInterval, "LEVERBOT_CHAIN_RECEIPT_INTERVAL")
	setInt64(&cfg.Chain.SlippageBps, "LEVERBOT_CHAIN_SLIPPAGE_BPS")
	setInt64(&cfg.Chain.WRMBPriceDivisor, "LEVERBOT_CHAIN_WRMB_PRICE_DIVISOR")
	setInt64(&cfg.Chain.FlashLoanPremiumBps, "LEVERBOT_CHAIN_FLASH_LOAN_PREMIUM_BPS")
	setDuration(&cfg.Chain.RequestTTL, "LEVERBOT_CHAIN_REQUEST_TTL")

	// Per-token address overrides, e.g. LEVERBOT_TOKEN_WBTC_ADDRESS.
	for sym, tok := range cfg.Chain.Tokens {
		t := tok
		setStr(&t.Address, "LEVERBOT_TOKEN_"+sym+"_ADDRESS")
		setInt(&t.Decimals, "LEVERBOT_TOKEN_"+sym+"_DECIMALS")
		cfg.Chain.Tokens[sym] = t
	}

	// ── Database ──
	setStr(&cfg.Database.DSN, "LEVERBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "LEVERBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "LEVERBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "LEVERBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "LEVERBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "LEVERBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "LEVERBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "LEVERBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "LEVERBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "LEVERBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LEVERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEVERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEVERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEVERBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEVERBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEVERBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LEVERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEVERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEVERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEVERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEVERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEVERBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEVERBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LEVERBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LEVERBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "LEVERBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "LEVERBOT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "LEVERBOT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LEVERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LEVERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LEVERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LEVERBOT_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "LEVERBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "LEVERBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "LEVERBOT_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "LEVERBOT_MODE")
	setStr(&cfg.LogLevel, "LEVERBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
