// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrSecretNotFound is returned when a source has no value for a key
var ErrSecretNotFound = errors.New("secret not found")

// SecretsSource resolves credentials by key
type SecretsSource interface {
	Lookup(ctx context.Context, key string) (string, error)
}

// secretValueAPI is the part of the Secrets Manager client we call
type secretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets reads keys from one JSON secret in AWS Secrets Manager. The
// decoded document is reused until ttl passes.
type AWSSecrets struct {
	api        secretValueAPI
	secretName string
	ttl        time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	values    map[string]string
	fetchedAt time.Time
}

var (
	_ SecretsSource = (*AWSSecrets)(nil)
	_ SecretsSource = EnvSecrets{}
)

// NewAWSSecrets creates a source backed by the named secret
func NewAWSSecrets(ctx context.Context, region, secretName string, logger *slog.Logger) (*AWSSecrets, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newAWSSecrets(secretsmanager.NewFromConfig(cfg), secretName, logger), nil
}

func newAWSSecrets(api secretValueAPI, secretName string, logger *slog.Logger) *AWSSecrets {
	return &AWSSecrets{
		api:        api,
		secretName: secretName,
		ttl:        5 * time.Minute,
		logger:     logger.With(slog.String("component", "secrets")),
	}
}

// Lookup returns one key of the secret document
func (s *AWSSecrets) Lookup(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil || time.Since(s.fetchedAt) > s.ttl {
		if err := s.fetch(ctx); err != nil {
			return "", err
		}
	}

	val, ok := s.values[key]
	if !ok || val == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrSecretNotFound, key, s.secretName)
	}
	return val, nil
}

func (s *AWSSecrets) fetch(ctx context.Context) error {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(s.secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return fmt.Errorf("failed to read secret %s: %w", s.secretName, err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", s.secretName)
	}

	values := make(map[string]string)
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return fmt.Errorf("secret %s is not a JSON object of strings: %w", s.secretName, err)
	}

	s.values = values
	s.fetchedAt = time.Now()
	s.logger.InfoContext(ctx, "secrets loaded",
		slog.String("secret_name", s.secretName),
		slog.Int("keys", len(values)))
	return nil
}

// EnvSecrets reads credentials from the process environment
type EnvSecrets struct{}

// Lookup returns the environment variable named key
func (EnvSecrets) Lookup(_ context.Context, key string) (string, error) {
	if val := os.Getenv(key); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: environment variable %s", ErrSecretNotFound, key)
}

// credential binds a secret key to the config field it fills
type credential struct {
	key      string
	target   *string
	required bool
}

func (c *Config) credentials() []credential {
	return []credential{
		{key: "DB_PASSWORD", target: &c.Database.Password, required: true},
		{key: "REDIS_PASSWORD", target: &c.Redis.Password},
		{key: "ASYNQ_REDIS_PASSWORD", target: &c.Asynq.RedisPassword},
		{key: "AWS_SECRET_ACCESS_KEY", target: &c.AWS.SecretAccessKey},
	}
}

// applySecrets fills credentials from src. Optional keys the source does not
// hold keep their current value.
func (c *Config) applySecrets(ctx context.Context, src SecretsSource) error {
	for _, cred := range c.credentials() {
		val, err := src.Lookup(ctx, cred.key)
		switch {
		case err == nil:
			*cred.target = val
		case errors.Is(err, ErrSecretNotFound) && !cred.required:
		case errors.Is(err, ErrSecretNotFound):
			return fmt.Errorf("%w: %s: %v", ErrMissingRequiredConfig, cred.key, err)
		default:
			return err
		}
	}
	return nil
}
