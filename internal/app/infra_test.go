package app_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ammerola/pharmapos-be/internal/app"
	"github.com/ammerola/pharmapos-be/test/helpers"
)

func TestDatabaseConfig(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	cfg.Database.StatementCacheMode = "exec"

	full := app.DatabaseConfig(cfg, 0)
	assert.Equal(t, int32(10), full.MaxConnections)
	assert.Equal(t, int32(2), full.MinConnections)
	assert.Equal(t, "test_pharmapos", full.Database)
	assert.Equal(t, 5*time.Second, full.LockTimeout)
	assert.Equal(t, "exec", full.StatementCacheMode)

	small := app.DatabaseConfig(cfg, 1)
	assert.Equal(t, int32(1), small.MaxConnections)
	assert.Equal(t, int32(1), small.MinConnections)
}

func TestAsynqRedis(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	cfg.Asynq.RedisAddr = "queue:6379"
	cfg.Asynq.RedisDB = 2

	opt := app.AsynqRedis(cfg)
	assert.Equal(t, "queue:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}

func TestOpenRedis(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	cfg := helpers.LoadTestConfig()
	host, port, _ := net.SplitHostPort(r.Server.Addr())
	cfg.Redis.Host, cfg.Redis.Port = host, port

	client, err := app.OpenRedis(t.Context(), cfg)
	assert.NoError(t, err)
	assert.NoError(t, client.Close())

	r.Server.Close()
	_, err = app.OpenRedis(t.Context(), cfg)
	assert.Error(t, err)
}
