//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/redis"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/typesense"
	"github.com/hirepulse/visitor-telemetry/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func requireEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if os.Getenv(key) == "" {
			t.Skipf("Skipping integration test: %s not set", key)
		}
	}
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	requireEnv(t, "TEST_REDIS_HOST")

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(cfg)
	require.NoError(t, err, "Failed to create redis client")
	t.Cleanup(func() {
		_ = client.Client().FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

// newTestPostgresClient connects to the test database, applies migrations and
// empties the visitor tables.
func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	requireEnv(t, "TEST_DB_HOST")

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "visitor_telemetry_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	require.NoError(t, postgres.Migrate(cfg.DatabaseURL()), "Failed to migrate test database")

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")

	truncate := func() {
		_, err := client.DB().Exec(`TRUNCATE form_submissions, visitor_events, page_views, visitor_sessions, visitors`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		_ = client.Close()
	})
	return client
}

func newTestTypesenseClient(t *testing.T) *typesense.Client {
	t.Helper()
	requireEnv(t, "TEST_TYPESENSE_URL")

	client, err := typesense.NewClient(&config.TypesenseConfig{
		Enabled: true,
		URL:     getEnv("TEST_TYPESENSE_URL", "http://localhost:8108"),
		APIKey:  getEnv("TEST_TYPESENSE_API_KEY", "xyz"),
	})
	require.NoError(t, err, "Failed to create typesense client")
	return client
}
