// internal/pkg/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequiredConfig is returned when a required setting is absent or
// still holds a placeholder value.
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Asynq
	Asynq AsynqConfig

	// AWS
	AWS AWSConfig

	// Security
	Security SecurityConfig

	// Server
	Server ServerConfig

	// Point of sale
	Sales SalesConfig

	// Alerting
	Alerts AlertsConfig

	// Exports
	Export ExportConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
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

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host            string
	Port            string
	Password        string
	DB              int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	TTL             time.Duration
	EventChannel    string
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	RetryMax        int
	ShutdownTimeout time.Duration
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
	SecretsName     string // Secrets Manager secret holding DB_PASSWORD
	StorageDriver   string // s3 or local
	LocalStorageDir string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
	ActorHeader       string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
	RequestTimeout  time.Duration
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
}

// SalesConfig holds point-of-sale policy
type SalesConfig struct {
	VoidWindow    time.Duration
	StoreName     string // printed on receipts
	ReceiptURLTTL time.Duration
}

// AlertsConfig holds the alert policy and its schedule
type AlertsConfig struct {
	LowStockThreshold int
	ExpiryWindows     []int
	CheckSchedule     string // cron spec for the periodic run
	ResolvedRetention time.Duration
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	TempDir string
	MaxRows int
	MaxAge  time.Duration
}

// defaults are keyed by environment variable. Anything set in the
// environment (or .env in development) wins.
func defaults(env string) map[string]any {
	dev := env == "development"
	return map[string]any{
		"APP_NAME":    "pharmapos-api",
		"APP_VERSION": "dev",
		"LOG_LEVEL":   "debug",
		"LOG_FORMAT":  "json",
		"APP_DEBUG":   dev,

		"DB_HOST":                 "localhost",
		"DB_PORT":                 "5432",
		"DB_USER":                 "pharmapos",
		"DB_PASSWORD":             "pharmapos_dev",
		"DB_NAME":                 "pharmapos",
		"DB_SSL_MODE":             "disable",
		"DB_MAX_CONNECTIONS":      25,
		"DB_MIN_CONNECTIONS":      5,
		"DB_CONNECTION_LIFETIME":  time.Hour,
		"DB_IDLE_TIME":            30 * time.Minute,
		"DB_HEALTH_CHECK_PERIOD":  time.Minute,
		"DB_CONNECT_TIMEOUT":      10 * time.Second,
		"DB_LOCK_TIMEOUT":         5 * time.Second,
		"DB_STATEMENT_CACHE_MODE": "describe",
		"DB_QUERY_LOGGING":        dev,

		"REDIS_HOST":              "localhost",
		"REDIS_PORT":              "6379",
		"REDIS_DB":                0,
		"REDIS_MAX_RETRIES":       3,
		"REDIS_MIN_RETRY_BACKOFF": 8 * time.Millisecond,
		"REDIS_MAX_RETRY_BACKOFF": 512 * time.Millisecond,
		"REDIS_DIAL_TIMEOUT":      5 * time.Second,
		"REDIS_READ_TIMEOUT":      3 * time.Second,
		"REDIS_WRITE_TIMEOUT":     3 * time.Second,
		"REDIS_POOL_SIZE":         10,
		"REDIS_MIN_IDLE_CONNS":    2,
		"REDIS_POOL_TIMEOUT":      4 * time.Second,
		"REDIS_TTL":               time.Hour,
		"REDIS_EVENT_CHANNEL":     "pharmapos:events",

		"ASYNQ_REDIS_DB":         0,
		"ASYNQ_CONCURRENCY":      10,
		"ASYNQ_QUEUES":           "critical:6,default:3,low:1",
		"ASYNQ_STRICT_PRIORITY":  false,
		"ASYNQ_RETRY_MAX":        3,
		"ASYNQ_SHUTDOWN_TIMEOUT": 30 * time.Second,

		"AWS_REGION":            "ap-southeast-1",
		"AWS_ACCESS_KEY_ID":     "minioadmin",
		"AWS_SECRET_ACCESS_KEY": "minioadmin123",
		"AWS_S3_BUCKET":         "pharmapos-receipts",
		"AWS_S3_PATH_STYLE":     dev,
		"STORAGE_DRIVER":        "s3",
		"LOCAL_STORAGE_DIR":     "./data/receipts",

		"RATE_LIMIT_REQUESTS": 100,
		"RATE_LIMIT_DURATION": time.Minute,
		"ALLOWED_ORIGINS":     "*",
		"SECURE_HEADERS":      env == "production",
		"REQUEST_ID_HEADER":   "X-Request-ID",
		"ACTOR_HEADER":        "X-Actor-ID",

		"SERVER_HOST":             "0.0.0.0",
		"SERVER_PORT":             "8080",
		"SERVER_READ_TIMEOUT":     15 * time.Second,
		"SERVER_WRITE_TIMEOUT":    30 * time.Second,
		"SERVER_IDLE_TIMEOUT":     60 * time.Second,
		"SERVER_MAX_HEADER_BYTES": 1 << 20,
		"SERVER_GRACEFUL_TIMEOUT": 30 * time.Second,
		"SERVER_REQUEST_TIMEOUT":  25 * time.Second,
		"TLS_ENABLED":             false,

		"SALES_VOID_WINDOW":     72 * time.Hour,
		"SALES_STORE_NAME":      "PharmaPOS",
		"SALES_RECEIPT_URL_TTL": 15 * time.Minute,

		"ALERT_LOW_STOCK_THRESHOLD": 20,
		"ALERT_EXPIRY_WINDOWS":      "7,30,60",
		"ALERT_CHECK_SCHEDULE":      "*/30 * * * *",
		"ALERT_RESOLVED_RETENTION":  30 * 24 * time.Hour,

		"EXPORT_TEMP_DIR": os.TempDir(),
		"EXPORT_MAX_ROWS": 10000,
		"EXPORT_MAX_AGE":  24 * time.Hour,
	}
}

// Load reads configuration from the environment. In development a .env file
// is loaded first. Production resolves credentials through loadSecrets.
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults(env) {
		v.SetDefault(key, value)
	}

	expiryWindows, err := intList(v.GetString("ALERT_EXPIRY_WINDOWS"))
	if err != nil {
		return nil, fmt.Errorf("ALERT_EXPIRY_WINDOWS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: env,
			Version:     v.GetString("APP_VERSION"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
			Debug:       v.GetBool("APP_DEBUG"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSL_MODE"),
			MaxConnections:     v.GetInt32("DB_MAX_CONNECTIONS"),
			MinConnections:     v.GetInt32("DB_MIN_CONNECTIONS"),
			MaxConnLifetime:    v.GetDuration("DB_CONNECTION_LIFETIME"),
			MaxConnIdleTime:    v.GetDuration("DB_IDLE_TIME"),
			HealthCheckPeriod:  v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
			ConnectTimeout:     v.GetDuration("DB_CONNECT_TIMEOUT"),
			LockTimeout:        v.GetDuration("DB_LOCK_TIMEOUT"),
			StatementCacheMode: v.GetString("DB_STATEMENT_CACHE_MODE"),
			EnableQueryLogging: v.GetBool("DB_QUERY_LOGGING"),
		},
		Redis: RedisConfig{
			Host:            v.GetString("REDIS_HOST"),
			Port:            v.GetString("REDIS_PORT"),
			Password:        v.GetString("REDIS_PASSWORD"),
			DB:              v.GetInt("REDIS_DB"),
			MaxRetries:      v.GetInt("REDIS_MAX_RETRIES"),
			MinRetryBackoff: v.GetDuration("REDIS_MIN_RETRY_BACKOFF"),
			MaxRetryBackoff: v.GetDuration("REDIS_MAX_RETRY_BACKOFF"),
			DialTimeout:     v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:     v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:        v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns:    v.GetInt("REDIS_MIN_IDLE_CONNS"),
			PoolTimeout:     v.GetDuration("REDIS_POOL_TIMEOUT"),
			TTL:             v.GetDuration("REDIS_TTL"),
			EventChannel:    v.GetString("REDIS_EVENT_CHANNEL"),
		},
		Asynq: AsynqConfig{
			RedisAddr:       net.JoinHostPort(v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT")),
			RedisPassword:   v.GetString("REDIS_PASSWORD"),
			RedisDB:         v.GetInt("ASYNQ_REDIS_DB"),
			Concurrency:     v.GetInt("ASYNQ_CONCURRENCY"),
			Queues:          parseQueues(v.GetString("ASYNQ_QUEUES")),
			StrictPriority:  v.GetBool("ASYNQ_STRICT_PRIORITY"),
			RetryMax:        v.GetInt("ASYNQ_RETRY_MAX"),
			ShutdownTimeout: v.GetDuration("ASYNQ_SHUTDOWN_TIMEOUT"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:        v.GetString("AWS_S3_BUCKET"),
			S3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
			UsePathStyle:    v.GetBool("AWS_S3_PATH_STYLE"),
			SecretsName:     v.GetString("AWS_SECRETS_NAME"),
			StorageDriver:   v.GetString("STORAGE_DRIVER"),
			LocalStorageDir: v.GetString("LOCAL_STORAGE_DIR"),
		},
		Security: SecurityConfig{
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
			AllowedOrigins:    stringList(v.GetString("ALLOWED_ORIGINS")),
			SecureHeaders:     v.GetBool("SECURE_HEADERS"),
			RequestIDHeader:   v.GetString("REQUEST_ID_HEADER"),
			ActorHeader:       v.GetString("ACTOR_HEADER"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			MaxHeaderBytes:  v.GetInt("SERVER_MAX_HEADER_BYTES"),
			GracefulTimeout: v.GetDuration("SERVER_GRACEFUL_TIMEOUT"),
			RequestTimeout:  v.GetDuration("SERVER_REQUEST_TIMEOUT"),
			TLSEnabled:      v.GetBool("TLS_ENABLED"),
			TLSCertFile:     v.GetString("TLS_CERT_FILE"),
			TLSKeyFile:      v.GetString("TLS_KEY_FILE"),
		},
		Sales: SalesConfig{
			VoidWindow:    v.GetDuration("SALES_VOID_WINDOW"),
			StoreName:     v.GetString("SALES_STORE_NAME"),
			ReceiptURLTTL: v.GetDuration("SALES_RECEIPT_URL_TTL"),
		},
		Alerts: AlertsConfig{
			LowStockThreshold: v.GetInt("ALERT_LOW_STOCK_THRESHOLD"),
			ExpiryWindows:     expiryWindows,
			CheckSchedule:     v.GetString("ALERT_CHECK_SCHEDULE"),
			ResolvedRetention: v.GetDuration("ALERT_RESOLVED_RETENTION"),
		},
		Export: ExportConfig{
			TempDir: v.GetString("EXPORT_TEMP_DIR"),
			MaxRows: v.GetInt("EXPORT_MAX_ROWS"),
			MaxAge:  v.GetDuration("EXPORT_MAX_AGE"),
		},
	}

	if env == "production" {
		if err := cfg.loadSecrets(context.Background(), logger); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadSecrets resolves credentials from AWS Secrets Manager when a secret
// name is configured, otherwise from the environment.
func (c *Config) loadSecrets(ctx context.Context, logger *slog.Logger) error {
	var src SecretsSource = EnvSecrets{}
	if c.AWS.SecretsName != "" {
		remote, err := NewAWSSecrets(ctx, c.AWS.Region, c.AWS.SecretsName, logger)
		if err != nil {
			return fmt.Errorf("failed to init secrets manager: %w", err)
		}
		src = remote
	}
	return c.applySecrets(ctx, src)
}

// DatabaseURL is the postgres:// form used by the migrator
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisAddress is host:port for the cache and pub/sub client
func (c *Config) RedisAddress() string {
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

// ServerAddress is the HTTP listen address
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// stringList splits a comma separated value, dropping blanks
func stringList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intList(raw string) ([]int, error) {
	parts := stringList(raw)
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseQueues reads "name:priority" pairs. Malformed pairs are skipped and an
// empty result falls back to a single default queue.
func parseQueues(raw string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range stringList(raw) {
		name, weight, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		if p, err := strconv.Atoi(strings.TrimSpace(weight)); err == nil && p > 0 {
			queues[strings.TrimSpace(name)] = p
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
