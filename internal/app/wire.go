package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/marketengine/internal/blob/s3"
	"github.com/alanyoungcy/marketengine/internal/cache/redis"
	"github.com/alanyoungcy/marketengine/internal/config"
	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/metrics"
	"github.com/alanyoungcy/marketengine/internal/notify"
	"github.com/alanyoungcy/marketengine/internal/store/postgres"
)

// marketCacheTTL bounds how long a cached market may outlive a missed
// invalidation.
const marketCacheTTL = 5 * time.Minute

// Dependencies bundles the infrastructure the host services run on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client

	Locks       *redis.LockManager
	Bus         *redis.SignalBus
	MarketCache *redis.MarketCache
	RateLimiter *redis.RateLimiter
	Randomness  *redis.RandomnessFeed

	// Set only when the archive is enabled.
	S3       *s3blob.Client
	Archiver *s3blob.EventArchiver

	Metrics  *metrics.Recorder // nil when metrics are disabled
	Notifier *notify.Notifier

	// Signer is the host's own settlement key, when one is configured.
	Signer *crypto.Signer
}

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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)
	deps.Postgres = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
	}

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
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Redis = redisClient

	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient, marketCacheTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Randomness = redis.NewRandomnessFeed(redisClient)

	// --- S3 event archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3ClientConfig(cfg))
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.S3 = s3Client
		deps.Archiver = s3blob.NewEventArchiver(
			postgres.NewEventStore(pgClient.Pool()),
			s3blob.NewBucket(s3Client),
			postgres.NewAuditStore(pgClient.Pool()),
			cfg.Archive.Prefix,
			cfg.Archive.BatchSize,
		)
	}

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Settlement key ---
	if cfg.Wallet.Seed != "" || cfg.Wallet.EncryptedKeyPath != "" {
		signer, err := crypto.LoadSigner(crypto.KeyConfig{
			RawSeed:    cfg.Wallet.Seed,
			SealedPath: cfg.Wallet.EncryptedKeyPath,
			Password:   cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: wallet: %w", err))
		}
		deps.Signer = signer
	}

	return deps, cleanup, nil
}

func s3ClientConfig(cfg *config.Config) s3blob.ClientConfig {
	return s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	}
}
