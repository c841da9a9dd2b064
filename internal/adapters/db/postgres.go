// internal/adapters/db/postgres.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

const (
	applicationName    = "pharmapos"
	defaultLockTimeout = 5 * time.Second
)

// Config holds database configuration
type Config struct {
	Host               string
	Port               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	LockTimeout        time.Duration
	StatementCacheMode string
	EnableQueryLogging bool
}

// URL renders the config as a postgres:// connection string, the form the
// migrator and pgxpool both accept.
func (c *Config) URL() string {
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// execMode maps DB_STATEMENT_CACHE_MODE onto pgx's query modes. Poolers in
// transaction mode need "exec" or "simple".
func execMode(mode string) (pgx.QueryExecMode, error) {
	switch mode {
	case "", "describe":
		return pgx.QueryExecModeCacheDescribe, nil
	case "prepare":
		return pgx.QueryExecModeCacheStatement, nil
	case "exec":
		return pgx.QueryExecModeExec, nil
	case "simple":
		return pgx.QueryExecModeSimpleProtocol, nil
	}
	return 0, fmt.Errorf("unknown statement cache mode %q", mode)
}

// Database is the pgx pool behind every repository. Queries issued with a
// context from WithinTx run on that transaction.
type Database struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *slog.Logger
}

var (
	_ ports.Database  = (*Database)(nil)
	_ ports.TxManager = (*Database)(nil)
)

// NewDatabase opens the pool and checks that Postgres answers
func NewDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, errors.New("database config is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if err := tune(poolConfig, config, logger); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	lockTimeout := config.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}

	logger.Info("database connection established",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
		slog.Int("max_connections", int(poolConfig.MaxConns)),
		slog.Duration("lock_timeout", lockTimeout))

	return &Database{pool: pool, lockTimeout: lockTimeout, logger: logger}, nil
}

// tune applies pool sizing, exec mode and query tracing. Zero values keep
// pgxpool's own defaults.
func tune(pc *pgxpool.Config, config *Config, logger *slog.Logger) error {
	if config.MaxConnections > 0 {
		pc.MaxConns = config.MaxConnections
	}
	if config.MinConnections > 0 {
		pc.MinConns = config.MinConnections
	}
	if config.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = config.MaxConnIdleTime
	}
	if config.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = config.HealthCheckPeriod
	}

	mode, err := execMode(config.StatementCacheMode)
	if err != nil {
		return err
	}
	pc.ConnConfig.DefaultQueryExecMode = mode
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName

	if config.EnableQueryLogging {
		pc.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(slogTrace(logger.With(slog.String("component", "pgx")))),
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	return nil
}

// Pool exposes the pgx pool for fixtures and batch tooling
func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Database) Close() {
	db.pool.Close()
	db.logger.Info("database connections closed")
}

func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Health reports pool saturation. Sales block on Acquire once acquired
// reaches max, so both are surfaced along with the wait counters.
func (db *Database) Health(context.Context) map[string]interface{} {
	s := db.pool.Stat()
	return map[string]interface{}{
		"total_conns":         s.TotalConns(),
		"idle_conns":          s.IdleConns(),
		"acquired_conns":      s.AcquiredConns(),
		"max_conns":           s.MaxConns(),
		"empty_acquire_count": s.EmptyAcquireCount(),
		"acquire_wait":        s.AcquireDuration().String(),
		"lock_timeout":        db.lockTimeout.String(),
	}
}

type txKey struct{}

// WithinTx runs fn in a transaction carried by the context. A call made with
// a context that already carries a transaction joins it, so the outermost
// caller decides commit or rollback. Row locks wait at most the configured
// lock timeout before the statement fails with a conflict.
func (db *Database) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		stmt := "SET LOCAL lock_timeout = '" + strconv.FormatInt(db.lockTimeout.Milliseconds(), 10) + "ms'"
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return translateError(err)
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (db *Database) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.pool
}

func (db *Database) Batch() *pgx.Batch {
	return &pgx.Batch{}
}

func (db *Database) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return db.conn(ctx).SendBatch(ctx, batch)
}

func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.conn(ctx).Query(ctx, sql, args...)
}

func (db *Database) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.conn(ctx).QueryRow(ctx, sql, args...)
}

func (db *Database) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return db.conn(ctx).Exec(ctx, sql, args...)
}

var traceLevels = map[tracelog.LogLevel]slog.Level{
	tracelog.LogLevelError: slog.LevelError,
	tracelog.LogLevelWarn:  slog.LevelWarn,
	tracelog.LogLevelInfo:  slog.LevelInfo,
}

// slogTrace forwards pgx trace events to slog. Anything below info is debug.
func slogTrace(logger *slog.Logger) func(context.Context, tracelog.LogLevel, string, map[string]any) {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		lvl, ok := traceLevels[level]
		if !ok {
			lvl = slog.LevelDebug
		}
		if !logger.Enabled(ctx, lvl) {
			return
		}
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, lvl, msg, attrs...)
	}
}

// ScanOne scans a single row, mapping pgx.ErrNoRows to domain.ErrNotFound
func ScanOne[T any](row pgx.Row, scanner func(pgx.Row) (*T, error)) (*T, error) {
	entity, err := scanner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return entity, nil
}

// ScanMany drains rows through scanner and closes them
func ScanMany[T any](rows pgx.Rows, scanner func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		entity, err := scanner(rows)
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// Postgres error codes that signal a transient conflict
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateError maps contention errors to domain.ErrConflict and keeps the
// driver error in the chain.
func translateError(err error) error {
	if err == nil || errors.Is(err, domain.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return fmt.Errorf("%w: %s (%s)", domain.ErrConflict, pgErr.Message, pgErr.Code)
		}
	}
	return err
}
