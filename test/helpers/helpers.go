// test/helpers/helpers.go
package helpers

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pharmapos-be/internal/pkg/config"
)

// TestLogger logs at debug under -v and stays quiet otherwise
func TestLogger() *slog.Logger {
	var w io.Writer = io.Discard
	level := slog.LevelError
	if testing.Verbose() {
		w, level = os.Stdout, slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// TestRedis is a miniredis server and a client bound to it
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// SetupTestRedis starts miniredis for the lifetime of t
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &TestRedis{Client: client, Server: mr}
}

// LoadTestConfig returns the configuration the e2e suite runs the API with
func LoadTestConfig() *config.Config {
	cfg := &config.Config{}

	cfg.App = config.AppConfig{
		Name:        "pharmapos-test",
		Environment: "test",
		Version:     "test",
		LogLevel:    "debug",
		LogFormat:   "text",
		Debug:       true,
	}
	cfg.Database = config.DatabaseConfig{
		Host:           "localhost",
		Port:           "5432",
		User:           "test",
		Password:       "test",
		Name:           "test_pharmapos",
		SSLMode:        "disable",
		MaxConnections: 10,
		MinConnections: 2,
		LockTimeout:    5 * time.Second,
	}
	cfg.Redis = config.RedisConfig{
		Host:         "localhost",
		Port:         "6379",
		TTL:          time.Hour,
		PoolSize:     10,
		EventChannel: "pharmapos:events",
	}
	cfg.Security = config.SecurityConfig{
		RateLimitRequests: 100,
		RateLimitDuration: time.Minute,
		AllowedOrigins:    []string{"*"},
		RequestIDHeader:   "X-Request-ID",
		ActorHeader:       "X-Actor-ID",
	}
	cfg.Server = config.ServerConfig{
		Host:         "localhost",
		Port:         "8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	cfg.Sales.VoidWindow = 72 * time.Hour
	cfg.Alerts = config.AlertsConfig{
		LowStockThreshold: 20,
		ExpiryWindows:     []int{7, 30, 60},
		CheckSchedule:     "*/30 * * * *",
		ResolvedRetention: 30 * 24 * time.Hour,
	}
	cfg.Export = config.ExportConfig{
		TempDir: os.TempDir(),
		MaxRows: 10000,
		MaxAge:  time.Hour,
	}

	return cfg
}
