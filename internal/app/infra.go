// internal/app/infra.go

// Package app builds adapters and services from configuration. The api,
// worker and seeder binaries share it so they wire the core the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	"github.com/ammerola/pharmapos-be/internal/adapters/storage"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
)

// DatabaseConfig maps DB_* settings onto the pool config. A positive
// maxConns overrides DB_MAX_CONNECTIONS for processes that need fewer.
func DatabaseConfig(cfg *config.Config, maxConns int32) *db.Config {
	d := cfg.Database
	out := &db.Config{
		Host:               d.Host,
		Port:               d.Port,
		User:               d.User,
		Password:           d.Password,
		Database:           d.Name,
		SSLMode:            d.SSLMode,
		MaxConnections:     d.MaxConnections,
		MinConnections:     d.MinConnections,
		MaxConnLifetime:    d.MaxConnLifetime,
		MaxConnIdleTime:    d.MaxConnIdleTime,
		HealthCheckPeriod:  d.HealthCheckPeriod,
		ConnectTimeout:     d.ConnectTimeout,
		LockTimeout:        d.LockTimeout,
		StatementCacheMode: d.StatementCacheMode,
		EnableQueryLogging: d.EnableQueryLogging,
	}
	if maxConns > 0 {
		out.MaxConnections = maxConns
		out.MinConnections = min(out.MinConnections, maxConns)
	}
	return out
}

// OpenDatabase connects the pgx pool
func OpenDatabase(ctx context.Context, cfg *config.Config, maxConns int32, logger *slog.Logger) (*db.Database, error) {
	database, err := db.NewDatabase(ctx, DatabaseConfig(cfg, maxConns), logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return database, nil
}

// Migrate applies pending schema migrations, retrying while Postgres starts
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{DatabaseURL: cfg.DatabaseURL()}, logger, 3)
}

// OpenRedis connects the cache and pub/sub client and checks it answers
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	r := cfg.Redis
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.RedisAddress(),
		Password:        r.Password,
		DB:              r.DB,
		MaxRetries:      r.MaxRetries,
		MinRetryBackoff: r.MinRetryBackoff,
		MaxRetryBackoff: r.MaxRetryBackoff,
		DialTimeout:     r.DialTimeout,
		ReadTimeout:     r.ReadTimeout,
		WriteTimeout:    r.WriteTimeout,
		PoolSize:        r.PoolSize,
		MinIdleConns:    r.MinIdleConns,
		PoolTimeout:     r.PoolTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddress(), err)
	}
	return client, nil
}

// AsynqRedis is the connection used by the task client, server and inspector
func AsynqRedis(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
}

// OpenReceiptStore selects S3 or the local directory per STORAGE_DRIVER
func OpenReceiptStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.ReceiptStore, error) {
	a := cfg.AWS
	client, err := storage.NewStorageClient(ctx, a.StorageDriver, a.LocalStorageDir, &storage.S3Config{
		Region:          a.Region,
		Bucket:          a.S3Bucket,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
		Endpoint:        a.S3Endpoint,
		UsePathStyle:    a.UsePathStyle,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("receipt storage: %w", err)
	}
	return storage.NewReceiptStore(client, logger), nil
}
