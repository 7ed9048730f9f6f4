// Package app wires configuration into the hub's services. The server and
// the worker share it so both build the same stores, caches and locks.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/metrics-hub/internal/aggregate"
	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/pkg/distlock"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/platformsync"
	"github.com/ignite/metrics-hub/internal/repository/postgres"
	"github.com/ignite/metrics-hub/internal/service/overview"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
	"github.com/ignite/metrics-hub/internal/storage"
)

// SyncLockKey guards sync rounds across server and worker processes.
const SyncLockKey = "metrics-hub:sync"

// OpenDatabase connects to Postgres and verifies the connection.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Lifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database", "url", logger.RedactURL(cfg.URL))
	return db, nil
}

// OpenRedis returns nil when no URL is configured or Redis is unreachable;
// callers then run without the cache and lock on Postgres instead.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.URL == "" {
		logger.Info("redis not configured, overview cache disabled")
		return nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("invalid redis url, overview cache disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, overview cache disabled", "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", opts.Addr)
	return rdb
}

// OpenStorage returns nil when no AWS target is configured.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (*storage.AWS, error) {
	if !cfg.Enabled() {
		logger.Info("aws storage not configured, archive disabled")
		return nil, nil
	}
	a, err := storage.NewAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("aws storage initialized", "bucket", cfg.S3Bucket, "table", cfg.DynamoDBTable, "region", cfg.AWSRegion)
	return a, nil
}

// NewOverview builds the overview service, cached when rdb is set.
func NewOverview(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*overview.Service, error) {
	mode, err := aggregate.ParseEngagementMode(cfg.Overview.EngagementMode)
	if err != nil {
		return nil, err
	}
	svc := overview.NewService(postgres.NewOverviewStore(db), aggregate.New(mode), overview.Options{
		CacheTTL:         cfg.Overview.CacheTTL(),
		DefaultRangeDays: cfg.Overview.DefaultRangeDays,
	})
	return svc.WithCache(rdb), nil
}

// NewImports builds the import service. Finished imports invalidate ov.
func NewImports(cfg *config.Config, db *sql.DB, archive *storage.AWS, ov *overview.Service) *revenueimport.Service {
	svc := revenueimport.NewService(postgres.NewImportStore(db), revenueimport.Options{
		DefaultCurrency: cfg.Imports.DefaultCurrency,
		CheckpointRows:  cfg.Imports.CheckpointRows,
		InsertBatchSize: cfg.Imports.InsertBatchSize,
		PreviewRows:     cfg.Imports.PreviewRows,
		ArchiveUploads:  cfg.Imports.ArchiveUploads,
	})
	if archive != nil {
		svc.WithArchive(archive)
	}
	return svc.WithInvalidator(ov)
}

// NewSyncer builds the platform syncer with one S3 feed source per
// configured platform. Without a bucket the syncer has no sources.
func NewSyncer(cfg *config.Config, db *sql.DB, rdb *redis.Client, s3c platformsync.S3API, inv platformsync.Invalidator) *platformsync.Syncer {
	lock := func() distlock.DistLock {
		return distlock.NewLock(rdb, db, SyncLockKey, cfg.Sync.LockTTL())
	}
	syncer := platformsync.NewSyncer(postgres.NewMetricsRepo(db), lock, platformsync.Config{
		Interval:     cfg.Sync.Interval(),
		LookbackDays: cfg.Sync.LookbackDays,
		Concurrency:  cfg.Sync.Concurrency,
	}, SyncSources(cfg, s3c)...)
	if inv != nil {
		syncer.WithInvalidator(inv)
	}
	return syncer
}

// SyncSources maps cfg.Sync.Platforms to S3 feed sources. Unknown platform
// names are logged and skipped.
func SyncSources(cfg *config.Config, s3c platformsync.S3API) []platformsync.Source {
	if s3c == nil || cfg.Storage.S3Bucket == "" {
		if len(cfg.Sync.Platforms) > 0 {
			logger.Warn("sync platforms configured without an s3 bucket", "platforms", cfg.Sync.Platforms)
		}
		return nil
	}
	var sources []platformsync.Source
	for _, name := range cfg.Sync.Platforms {
		p, ok := domain.ParsePlatform(name)
		if !ok {
			logger.Warn("skipping unknown sync platform", "platform", name)
			continue
		}
		sources = append(sources, platformsync.NewS3Source(s3c, cfg.Storage.S3Bucket, cfg.Sync.S3Prefix, p))
	}
	return sources
}
