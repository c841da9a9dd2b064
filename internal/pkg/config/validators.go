// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// rule checks one aspect of the configuration
type rule func(c *Config) error

var (
	baseRules       = []rule{requiredSettings, poolLimits, salePolicy, alertPolicy, receiptStorage}
	productionRules = []rule{productionCredentials, productionTransport, productionOrigins}
)

// Validate runs every rule for the current environment and reports all
// failures at once.
func (c *Config) Validate() error {
	rules := baseRules
	if c.IsProduction() {
		rules = append(slices.Clone(baseRules), productionRules...)
	}
	return run(c, rules)
}

// ValidateProduction runs only the production hardening rules
func ValidateProduction(c *Config) error {
	return run(c, productionRules)
}

func run(c *Config, rules []rule) error {
	var errs []error
	for _, r := range rules {
		if err := r(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unset reports blank values and the MISSING_ placeholders left by templates
func unset(v string) bool {
	return v == "" || strings.HasPrefix(v, "MISSING_")
}

func requiredSettings(c *Config) error {
	required := []struct{ name, value string }{
		{"APP_NAME", c.App.Name},
		{"DB_HOST", c.Database.Host},
		{"DB_PORT", c.Database.Port},
		{"DB_USER", c.Database.User},
		{"DB_NAME", c.Database.Name},
		{"REDIS_HOST", c.Redis.Host},
		{"REDIS_PORT", c.Redis.Port},
		{"SERVER_PORT", c.Server.Port},
	}
	var missing []string
	for _, r := range required {
		if unset(r.value) {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, strings.Join(missing, ", "))
	}
	return nil
}

func poolLimits(c *Config) error {
	switch {
	case c.Database.MaxConnections < c.Database.MinConnections:
		return errors.New("DB_MAX_CONNECTIONS must not be below DB_MIN_CONNECTIONS")
	case c.Database.LockTimeout <= 0:
		return errors.New("DB_LOCK_TIMEOUT must be positive")
	case c.Redis.PoolSize <= 0:
		return errors.New("REDIS_POOL_SIZE must be positive")
	case c.Security.RateLimitRequests < 0:
		return errors.New("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func salePolicy(c *Config) error {
	if c.Sales.VoidWindow <= 0 {
		return errors.New("SALES_VOID_WINDOW must be positive")
	}
	return nil
}

// alertPolicy expects critical, warning and info horizons in ascending order
func alertPolicy(c *Config) error {
	if c.Alerts.LowStockThreshold <= 0 {
		return errors.New("ALERT_LOW_STOCK_THRESHOLD must be positive")
	}
	w := c.Alerts.ExpiryWindows
	if len(w) != 3 {
		return fmt.Errorf("ALERT_EXPIRY_WINDOWS needs critical, warning and info days, got %d values", len(w))
	}
	if w[0] < 0 || !slices.IsSorted(w) {
		return errors.New("ALERT_EXPIRY_WINDOWS must be ascending and non-negative")
	}
	return nil
}

func receiptStorage(c *Config) error {
	switch c.AWS.StorageDriver {
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("%w: AWS_S3_BUCKET", ErrMissingRequiredConfig)
		}
	case "local":
		if c.AWS.LocalStorageDir == "" {
			return fmt.Errorf("%w: LOCAL_STORAGE_DIR", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not one of s3, local", c.AWS.StorageDriver)
	}
	return nil
}

func productionCredentials(c *Config) error {
	if unset(c.Database.Password) {
		return fmt.Errorf("%w: DB_PASSWORD", ErrMissingRequiredConfig)
	}
	return nil
}

func productionTransport(c *Config) error {
	if c.Database.SSLMode == "disable" {
		return errors.New("DB_SSL_MODE must not be disable in production")
	}
	if !c.Security.SecureHeaders {
		return errors.New("SECURE_HEADERS must be on in production")
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS_ENABLED")
	}
	return nil
}

func productionOrigins(c *Config) error {
	if len(c.Security.AllowedOrigins) == 0 {
		return errors.New("ALLOWED_ORIGINS must be set in production")
	}
	if slices.Contains(c.Security.AllowedOrigins, "*") {
		return errors.New("ALLOWED_ORIGINS must not contain * in production")
	}
	return nil
}
