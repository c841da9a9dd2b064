package config_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pharmapos-be/internal/pkg/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := config.Load(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "pharmapos-api", cfg.App.Name)
	assert.Equal(t, 72*time.Hour, cfg.Sales.VoidWindow)
	assert.Equal(t, 20, cfg.Alerts.LowStockThreshold)
	assert.Equal(t, []int{7, 30, 60}, cfg.Alerts.ExpiryWindows)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "X-Actor-ID", cfg.Security.ActorHeader)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Asynq.Queues)
	assert.Equal(t, "s3", cfg.AWS.StorageDriver)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SALES_VOID_WINDOW", "24h")
	t.Setenv("ALERT_LOW_STOCK_THRESHOLD", "10")
	t.Setenv("ALERT_EXPIRY_WINDOWS", "3, 14, 45")
	t.Setenv("ASYNQ_QUEUES", "critical:1")

	cfg, err := config.Load(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Sales.VoidWindow)
	assert.Equal(t, 10, cfg.Alerts.LowStockThreshold)
	assert.Equal(t, []int{3, 14, 45}, cfg.Alerts.ExpiryWindows)
	assert.Equal(t, map[string]int{"critical": 1}, cfg.Asynq.Queues)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero_threshold", "ALERT_LOW_STOCK_THRESHOLD", "0"},
		{"descending_windows", "ALERT_EXPIRY_WINDOWS", "60,30,7"},
		{"two_windows", "ALERT_EXPIRY_WINDOWS", "7,30"},
		{"negative_void_window", "SALES_VOID_WINDOW", "-1h"},
		{"unknown_storage_driver", "STORAGE_DRIVER", "ftp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "test")
			t.Setenv(tt.key, tt.value)

			_, err := config.Load(discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestValidateProduction(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Database: config.DatabaseConfig{Password: "s3cret", SSLMode: "require"},
			Security: config.SecurityConfig{SecureHeaders: true, AllowedOrigins: []string{"https://pos.example.ph"}},
		}
	}
	require.NoError(t, config.ValidateProduction(valid()))

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		missing bool
	}{
		{name: "placeholder_password", mutate: func(c *config.Config) { c.Database.Password = "MISSING_DB_PASSWORD" }, missing: true},
		{name: "ssl_disabled", mutate: func(c *config.Config) { c.Database.SSLMode = "disable" }},
		{name: "wildcard_origin", mutate: func(c *config.Config) { c.Security.AllowedOrigins = []string{"https://pos.example.ph", "*"} }},
		{name: "no_origins", mutate: func(c *config.Config) { c.Security.AllowedOrigins = nil }},
		{name: "tls_without_cert", mutate: func(c *config.Config) { c.Server.TLSEnabled = true }},
		{name: "insecure_headers", mutate: func(c *config.Config) { c.Security.SecureHeaders = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := config.ValidateProduction(cfg)
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, config.ErrMissingRequiredConfig))
		})
	}
}

func TestValidate_ReportsEveryFailure(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("ALERT_LOW_STOCK_THRESHOLD", "0")
	t.Setenv("SALES_VOID_WINDOW", "0s")
	t.Setenv("DB_HOST", "MISSING_DB_HOST")

	_, err := config.Load(discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingRequiredConfig)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "ALERT_LOW_STOCK_THRESHOLD")
	assert.Contains(t, err.Error(), "SALES_VOID_WINDOW")
}

func TestLoad_RejectsMalformedExpiryWindows(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("ALERT_EXPIRY_WINDOWS", "7,thirty,60")

	_, err := config.Load(discardLogger())
	assert.ErrorContains(t, err, "ALERT_EXPIRY_WINDOWS")
}

func TestConfig_Addresses(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database = config.DatabaseConfig{Host: "db", Port: "5432", User: "pos", Password: "a/b", Name: "pharmapos", SSLMode: "disable"}
	cfg.Redis = config.RedisConfig{Host: "cache", Port: "6379"}
	cfg.Server = config.ServerConfig{Host: "0.0.0.0", Port: "8080"}

	assert.Equal(t, "postgres://pos:a%2Fb@db:5432/pharmapos?sslmode=disable", cfg.DatabaseURL())
	assert.Equal(t, "cache:6379", cfg.RedisAddress())
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")

	val, err := config.EnvSecrets{}.Lookup(t.Context(), "DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)

	_, err = config.EnvSecrets{}.Lookup(t.Context(), "PHARMAPOS_UNSET_SECRET")
	assert.ErrorIs(t, err, config.ErrSecretNotFound)
}
