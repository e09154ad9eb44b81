package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ksenkin/tradediary/internal/blob/s3"
	"github.com/ksenkin/tradediary/internal/cache/redis"
	"github.com/ksenkin/tradediary/internal/config"
	"github.com/ksenkin/tradediary/internal/crypto"
	"github.com/ksenkin/tradediary/internal/domain"
	"github.com/ksenkin/tradediary/internal/ledger"
	"github.com/ksenkin/tradediary/internal/notify"
	"github.com/ksenkin/tradediary/internal/platform/bybit"
	"github.com/ksenkin/tradediary/internal/platform/okx"
	"github.com/ksenkin/tradediary/internal/service"
	"github.com/ksenkin/tradediary/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore domain.PositionStore
	ProfileStore  domain.ProfileStore
	SyncRunStore  domain.SyncRunStore

	// Redis
	LockManager domain.LockManager
	CursorCache domain.SyncCursorCache

	// Blob storage; nil unless S3 is enabled.
	Archiver domain.FillArchiver

	// Core
	Ledger   *ledger.Ledger
	Notifier *notify.Notifier

	// Services
	ProfileService  *service.ProfileService
	PositionService *service.PositionService
	SyncService     *service.SyncService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.ProfileStore = postgres.NewProfileStore(pool)
	deps.SyncRunStore = postgres.NewSyncRunStore(pool)

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

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.CursorCache = redis.NewSyncCursorCache(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Core + services ---
	deps.Ledger = ledger.New(deps.PositionStore, ledger.Config{
		DustEpsilon:   cfg.Ledger.DustEpsilon,
		MoneyScale:    cfg.Ledger.MoneyScale,
		QuantityScale: cfg.Ledger.QuantityScale,
	}, logger)

	secretBox, err := crypto.NewSecretBox(cfg.Secrets.MasterPassword)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: secret box: %w", err)
	}

	deps.ProfileService = service.NewProfileService(deps.ProfileStore, secretBox, logger)
	deps.PositionService = service.NewPositionService(deps.PositionStore, deps.Ledger, deps.Notifier, logger)
	deps.SyncService = service.NewSyncService(
		deps.ProfileService,
		deps.ProfileStore,
		deps.SyncRunStore,
		deps.Ledger,
		deps.LockManager,
		deps.CursorCache,
		deps.Archiver,
		deps.Notifier,
		newFetcherFactory(cfg),
		logger,
	)

	return deps, cleanup, nil
}

// newFetcherFactory builds the per-profile exchange client constructor. A
// profile's own base URL wins over the configured default, so individual
// accounts can point at testnet.
func newFetcherFactory(cfg *config.Config) service.FetcherFactory {
	return func(p domain.Profile, creds service.Credentials) (service.FillFetcher, error) {
		baseURL := p.BaseURL

		switch p.Exchange {
		case domain.ExchangeBybit:
			if baseURL == "" {
				baseURL = cfg.Sync.BybitBaseURL
			}
			return bybitClient(baseURL, p, creds), nil
		case domain.ExchangeOKX:
			if baseURL == "" {
				baseURL = cfg.Sync.OKXBaseURL
			}
			return okxClient(baseURL, creds), nil
		default:
			return nil, fmt.Errorf("wire: unsupported exchange %q", p.Exchange)
		}
	}
}

func bybitClient(baseURL string, p domain.Profile, creds service.Credentials) *bybit.Client {
	return bybit.NewClient(baseURL, "", &crypto.BybitAuth{
		Key:        creds.APIKey,
		Secret:     creds.APISecret,
		RecvWindow: p.RecvWindow,
	})
}

func okxClient(baseURL string, creds service.Credentials) *okx.Client {
	return okx.NewClient(baseURL, "", &crypto.OKXAuth{
		Key:        creds.APIKey,
		Secret:     creds.APISecret,
		Passphrase: creds.Passphrase,
	})
}
