// test/helpers/postgres.go
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
)

const postgresImageTag = "16-alpine"

// TestDB is a migrated Postgres running in a throwaway container
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// SetupTestDB starts Postgres, waits for it to accept connections and applies
// the embedded migrations. The container is purged when t finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "docker is not reachable")
	pool.MaxWait = 90 * time.Second

	cfg := &db.Config{
		Host:               "localhost",
		User:               "test",
		Password:           "test",
		Database:           "test_pharmapos",
		SSLMode:            "disable",
		MaxConnections:     20,
		MinConnections:     1,
		ConnectTimeout:     10 * time.Second,
		LockTimeout:        5 * time.Second,
		EnableQueryLogging: testing.Verbose(),
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        postgresImageTag,
		Env: []string{
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.Database,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "postgres container did not start")
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purge postgres container: %v", err)
		}
	})
	cfg.Port = resource.GetPort("5432/tcp")

	var database *db.Database
	require.NoError(t, pool.Retry(func() error {
		var err error
		database, err = db.NewDatabase(context.Background(), cfg, TestLogger())
		return err
	}), "postgres never accepted connections")
	t.Cleanup(database.Close)

	require.NoError(t, db.RunMigrationsWithRetry(context.Background(),
		&db.MigrationConfig{DatabaseURL: cfg.URL()}, TestLogger(), 3), "migrations failed")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   cfg,
	}
}

// TruncateAllTables empties every table between suite tests.
// stock_movements rejects DELETE through its trigger but TRUNCATE is allowed.
func TruncateAllTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE TABLE audit_logs, alerts, sale_items, sales, stock_movements, products CASCADE`)
	require.NoError(t, err, "truncate tables")
}
