package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Alerting AlertingConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CacheConfig holds the shared cache (key/value store with TTL)
// configuration.
type CacheConfig struct {
	Provider        string // "memory", "redis"
	RedisURL        string
	RedisDB         int
	RedisPassword   string
	PoolSize        int
	DefaultTTL      time.Duration
	MaxKeys         int
	CleanupInterval time.Duration
}

// AlertingConfig holds rule-engine scheduling and notification channel
// configuration. A channel enabled without its required settings is
// disabled with a warning at startup rather than aborting.
type AlertingConfig struct {
	EvaluationInterval time.Duration
	SnapshotInterval   time.Duration
	DispatchTimeout    time.Duration

	WebhookEnabled bool
	WebhookURL     string

	EmailEnabled  bool
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
	EmailTo       []string

	PagerEnabled    bool
	PagerEndpoint   string
	PagerRoutingKey string
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, optionally seeded from a
// .env file outside production.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load() // fallback to .env
		}
	}

	config := &Config{
		Server:   loadServerConfig(env),
		Cache:    loadCacheConfig(env),
		Alerting: loadAlertingConfig(),
		Logging:  loadLoggingConfig(env),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "9000"),
		Environment:  env,
		ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}
}

func loadCacheConfig(env string) CacheConfig {
	provider := getEnv("CACHE_PROVIDER", "memory")
	if env == "production" && os.Getenv("CACHE_PROVIDER") == "" {
		// Production defaults to the shared cache so dashboards outside
		// this process can read snapshots and alert history.
		provider = "redis"
	}
	return CacheConfig{
		Provider:        provider,
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		PoolSize:        getIntEnv("REDIS_POOL_SIZE", 10),
		DefaultTTL:      getDurationEnv("CACHE_DEFAULT_TTL", 15*time.Minute),
		MaxKeys:         getIntEnv("CACHE_MAX_KEYS", 10000),
		CleanupInterval: getDurationEnv("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

func loadAlertingConfig() AlertingConfig {
	return AlertingConfig{
		EvaluationInterval: getDurationEnv("ALERT_EVALUATION_INTERVAL", time.Minute),
		SnapshotInterval:   getDurationEnv("METRICS_SNAPSHOT_INTERVAL", 10*time.Second),
		DispatchTimeout:    getDurationEnv("ALERT_DISPATCH_TIMEOUT", 5*time.Second),

		WebhookEnabled: getBoolEnv("ALERT_WEBHOOK_ENABLED", false),
		WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),

		EmailEnabled: getBoolEnv("ALERT_EMAIL_ENABLED", false),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("ALERT_EMAIL_FROM", ""),
		EmailTo:      getListEnv("ALERT_EMAIL_TO"),

		PagerEnabled:    getBoolEnv("ALERT_PAGER_ENABLED", false),
		PagerEndpoint:   getEnv("ALERT_PAGER_ENDPOINT", ""),
		PagerRoutingKey: getEnv("ALERT_PAGER_ROUTING_KEY", ""),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	level := "debug"
	if env == "production" {
		level = "info"
	}
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", level),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if p := strings.ToLower(c.Cache.Provider); p != "memory" && p != "redis" {
		return fmt.Errorf("unsupported cache provider: %s", c.Cache.Provider)
	}
	if c.Alerting.EvaluationInterval <= 0 {
		return fmt.Errorf("alert evaluation interval must be positive")
	}
	if c.Alerting.SnapshotInterval <= 0 {
		return fmt.Errorf("metrics snapshot interval must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ===============================
// ENV HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
