package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/cinafi/leverbot/internal/blob/s3"
	"github.com/cinafi/leverbot/internal/cache/redis"
	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/notify"
	"github.com/cinafi/leverbot/internal/server/handler"
	"github.com/cinafi/leverbot/internal/store/postgres"
	"github.com/cinafi/leverbot/internal/wallet"
)

// Dependencies bundles every dependency the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	ActionStore domain.ActionStore
	AuditStore  domain.AuditStore

	// Caches
	PositionCache domain.PositionCache
	RequestGuard  domain.RequestGuard
	RateLimiter   domain.RateLimiter
	SignalBus     domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Chain access. Wallet is nil in monitor mode when no key is configured;
	// the chain client still serves reads.
	Wallet *wallet.Wallet
	Chain  *chain.Client

	// Notifications
	Notifier *notify.Notifier

	// Pingers feed the health endpoint, keyed by dependency name.
	Pingers map[string]handler.Pinger
}

// needsWallet returns true for modes that submit transactions.
func needsWallet(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// pingFunc adapts a bare function to the health Pinger interface.
type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Pingers: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	actionStore := postgres.NewActionStore(pool)
	auditStore := postgres.NewAuditStore(pool)
	deps.ActionStore = actionStore
	deps.AuditStore = auditStore
	deps.Pingers["postgres"] = pgClient

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PositionCache = redis.NewPositionCache(redisClient)
	deps.RequestGuard = redis.NewRequestGuard(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Pingers["redis"] = redisClient

	// --- Wallet ---
	w, err := wallet.New(wallet.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}, cfg.Chain.ChainID)
	switch {
	case err == nil:
		deps.Wallet = w
	case errors.Is(err, domain.ErrWalletNotConfigured) && !needsWallet(cfg.Mode):
		logger.Warn("no wallet configured, running read-only")
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}

	// --- Chain client ---
	chainClient, err := chain.New(ctx, cfg.Chain, deps.Wallet, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, func() { _ = chainClient.Close() })
	deps.Chain = chainClient

	// --- S3 blob storage (only when archival is on) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			actionStore,
			auditStore,
			logger,
		)
		deps.Pingers["s3"] = pingFunc(s3Client.Health)
	}

	// --- Notifications ---
	deps.Notifier = notify.New(cfg.Notify, logger)

	return deps, cleanup, nil
}
