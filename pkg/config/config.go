// Package config loads application configuration from TODOD_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Janitor       JanitorConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds redis settings for token revocation and rate
// limiting. An empty Addr disables redis and falls back to in-memory
// implementations.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token settings.
type AuthConfig struct {
	TokenSecret   string
	TokenIssuer   string
	TokenTTL      time.Duration
	InvitationTTL time.Duration
}

// RateLimitConfig holds request rate limiting settings.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// JanitorConfig holds the background cleanup schedules.
type JanitorConfig struct {
	InvitationPurgeSchedule string
	AuditRetention          time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TODOD_HOST", "0.0.0.0"),
			Port:            getEnv("TODOD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TODOD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TODOD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TODOD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TODOD_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvList("TODOD_ALLOWED_ORIGINS", []string{"*"}),
			HealthPort:      getEnv("TODOD_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("TODOD_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("TODOD_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("TODOD_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("TODOD_POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("TODOD_REDIS_ADDR", ""),
			Password: getEnv("TODOD_REDIS_PASSWORD", ""),
			DB:       getEnvInt("TODOD_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenSecret:   getEnv("TODOD_TOKEN_SECRET", ""),
			TokenIssuer:   getEnv("TODOD_TOKEN_ISSUER", "todod"),
			TokenTTL:      getEnvDuration("TODOD_TOKEN_TTL", 24*time.Hour),
			InvitationTTL: getEnvDuration("TODOD_INVITATION_TTL", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("TODOD_RATELIMIT_ENABLED", true),
			Limit:   getEnvInt("TODOD_RATELIMIT_LIMIT", 300),
			Window:  getEnvDuration("TODOD_RATELIMIT_WINDOW", time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("TODOD_LOG_LEVEL", "info"),
			LogFormat:          getEnv("TODOD_LOG_FORMAT", "json"),
			MetricsEnabled:     getEnvBool("TODOD_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("TODOD_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("TODOD_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("TODOD_OTEL_SERVICE_NAME", "todod"),
			OTelServiceVersion: getEnv("TODOD_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("TODOD_OTEL_INSECURE", true),
		},
		Janitor: JanitorConfig{
			InvitationPurgeSchedule: getEnv("TODOD_JANITOR_INVITATION_SCHEDULE", "@hourly"),
			AuditRetention:          getEnvDuration("TODOD_JANITOR_AUDIT_RETENTION", 90*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("TODOD_TOKEN_SECRET is required")
	}
	if len(c.Auth.TokenSecret) < 32 {
		return fmt.Errorf("TODOD_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TODOD_TOKEN_TTL must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("TODOD_RATELIMIT_LIMIT must be positive when rate limiting is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.Window < time.Second {
		return fmt.Errorf("TODOD_RATELIMIT_WINDOW must be at least one second")
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("TODOD_LOG_LEVEL must be one of debug, info, warn, error")
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("TODOD_LOG_FORMAT must be json or text")
	}
	return nil
}

// Addr returns the listen address of the API server.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// HealthAddr returns the listen address of the health/metrics server.
func (c *ServerConfig) HealthAddr() string {
	return c.Host + ":" + c.HealthPort
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
