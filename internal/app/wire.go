package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/mfaulds/bookwatch/internal/blob/s3"
	"github.com/mfaulds/bookwatch/internal/cache/redis"
	"github.com/mfaulds/bookwatch/internal/config"
	"github.com/mfaulds/bookwatch/internal/domain"
	"github.com/mfaulds/bookwatch/internal/store/postgres"
)

// Dependencies bundles the infrastructure the application modes need. Fields
// are nil in modes that do not record.
type Dependencies struct {
	TradeStore domain.TradeStore
	BookCache  *redis.BookCache
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver
}

// needsStores reports whether the mode records to Postgres/Redis/S3.
func needsStores(mode string) bool {
	switch strings.ToLower(mode) {
	case "record", "full":
		return true
	default:
		return false
	}
}

// Wire constructs the concrete dependency implementations for the configured
// mode and returns them together with a cleanup function that must be called
// on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	if !needsStores(cfg.Mode) {
		return deps, cleanup, nil
	}

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
	deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())

	// --- Redis ---
	rdb, err := redis.Connect(ctx, redis.ClientConfig{
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
	closers = append(closers, func() { _ = rdb.Close() })
	deps.BookCache = redis.NewBookCache(rdb)

	// --- S3 ---
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
	closers = append(closers, func() { _ = s3Client.Close() })

	writer := s3blob.NewWriter(s3Client)
	deps.BlobWriter = writer
	deps.Archiver = s3blob.NewTradeArchiver(cfg.Feed.Symbol, deps.TradeStore, writer, logger)

	return deps, cleanup, nil
}
