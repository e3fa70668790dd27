package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	GeoIP     GeoIPConfig
	Presence  PresenceConfig
	Tracking  TrackingConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int

	// AllowedOrigins is the comma separated CORS allow list; empty allows any origin.
	AllowedOrigins string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// GeoIPConfig holds the MaxMind database location used for enrichment
type GeoIPConfig struct {
	DBPath string
}

// PresenceConfig holds live presence configuration
type PresenceConfig struct {
	ReapSchedule         string
	HeartbeatStepSeconds int
}

// TrackingConfig holds ingestion and query tuning
type TrackingConfig struct {
	StoreBackend             string
	StoreTimeoutMs           int
	EnrichmentTimeoutMs      int
	RecentActivityLimit      int
	AnalyticsCacheTTLSeconds int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("ENV", "production"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "visitor_telemetry"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnvAsBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		GeoIP: GeoIPConfig{
			DBPath: getEnv("GEOIP_DB_PATH", "./geoip/GeoLite2-City.mmdb"),
		},
		Presence: PresenceConfig{
			ReapSchedule:         getEnv("PRESENCE_REAP_SCHEDULE", "@every 1m"),
			HeartbeatStepSeconds: getEnvAsInt("PRESENCE_HEARTBEAT_STEP_SECONDS", 5),
		},
		Tracking: TrackingConfig{
			StoreBackend:             getEnv("STORE_BACKEND", "postgres"),
			StoreTimeoutMs:           getEnvAsInt("STORE_TIMEOUT_MS", 3000),
			EnrichmentTimeoutMs:      getEnvAsInt("ENRICHMENT_TIMEOUT_MS", 500),
			RecentActivityLimit:      getEnvAsInt("RECENT_ACTIVITY_LIMIT", 20),
			AnalyticsCacheTTLSeconds: getEnvAsInt("ANALYTICS_CACHE_TTL_SECONDS", 60),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "visitor-telemetry"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	switch cfg.Tracking.StoreBackend {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.Tracking.StoreBackend)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL returns the PostgreSQL connection URL used by the migrator
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreTimeout bounds each call into the visitor store.
func (c *TrackingConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// EnrichmentTimeout bounds each call into the enrichment adapter.
func (c *TrackingConfig) EnrichmentTimeout() time.Duration {
	return time.Duration(c.EnrichmentTimeoutMs) * time.Millisecond
}

// HeartbeatStep is the implicit timeOnSite increment for a bare heartbeat.
func (c *PresenceConfig) HeartbeatStep() time.Duration {
	return time.Duration(c.HeartbeatStepSeconds) * time.Second
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
