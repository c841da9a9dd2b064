package config

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretValues struct {
	body  *string
	err   error
	calls int
}

func (f *fakeSecretValues) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: f.body}, nil
}

func TestAWSSecrets_Lookup(t *testing.T) {
	api := &fakeSecretValues{body: aws.String(`{"DB_PASSWORD":"s3cret","REDIS_PASSWORD":""}`)}
	src := newAWSSecrets(api, "pharmapos/prod", slog.Default())

	val, err := src.Lookup(t.Context(), "DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", val)

	_, err = src.Lookup(t.Context(), "REDIS_PASSWORD")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	assert.Equal(t, 1, api.calls, "document is fetched once within ttl")
}

func TestAWSSecrets_FetchErrors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeSecretValues
	}{
		{"api_error", &fakeSecretValues{err: errors.New("access denied")}},
		{"binary_secret", &fakeSecretValues{}},
		{"not_json", &fakeSecretValues{body: aws.String("hunter2")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAWSSecrets(tt.api, "pharmapos/prod", slog.Default()).Lookup(t.Context(), "DB_PASSWORD")
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrSecretNotFound)
		})
	}
}

type mapSecrets map[string]string

func (m mapSecrets) Lookup(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func TestConfig_ApplySecrets(t *testing.T) {
	tests := []struct {
		name    string
		src     SecretsSource
		wantErr error
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "fills_present_keys",
			src:  mapSecrets{"DB_PASSWORD": "db", "REDIS_PASSWORD": "cache"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "db", c.Database.Password)
				assert.Equal(t, "cache", c.Redis.Password)
				assert.Equal(t, "queue-default", c.Asynq.RedisPassword)
			},
		},
		{
			name:    "missing_db_password",
			src:     mapSecrets{"REDIS_PASSWORD": "cache"},
			wantErr: ErrMissingRequiredConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.Asynq.RedisPassword = "queue-default"

			err := c.applySecrets(t.Context(), tt.src)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
