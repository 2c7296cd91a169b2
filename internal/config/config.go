// Package config provides configuration management for the enrichment relay.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration to ensure the application starts
// safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 3000)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//   - TLS_CERT / TLS_KEY: Optional TLS certificate and key paths
//
// Slack:
//   - SLACK_BOT_TOKEN: Bot token used for Web API calls (required)
//   - SLACK_SIGNING_SECRET: Secret for verifying inbound event signatures (required)
//   - SLACK_EVENTS_PATH: Path of the events endpoint (default: /slack/events)
//   - ALLOWED_CHANNEL: When set, only messages in this channel are processed
//
// Enrichment (Clay):
//   - CLAY_WEBHOOK_URL: Webhook-style submission endpoint
//   - CLAY_API_BASE: Base URL for direct row creation
//   - CLAY_API_KEY: Bearer token (optional for webhook mode, required for API mode)
//   - BOT_CALLBACK_SECRET: Shared secret the callback must echo back (required)
//   - PUBLIC_BASE_URL: Externally reachable base URL for the callback address (required)
//   - CALLBACK_PATH: Path of the callback endpoint (default: /clay/callback)
//   - ENRICH_KEYWORD: Trigger keyword (default: enrich)
//
// Rate Limiting:
//   - RATE_LIMIT_PER_WINDOW: Admissions per actor per window (default: 1)
//   - RATE_LIMIT_WINDOW: Window duration (default: 60s)
//   - RATE_LIMIT_BACKEND: "local" or "redis" (default: local)
//
// Correlation Store:
//   - CORRELATION_BACKEND: "memory", "redis" or "sqlite" (default: memory)
//   - SQLITE_PATH: SQLite database file path (default: ./enrich_relay.db)
//
// Redis (used by the redis-backed store and limiter):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Note that the enrichment transport (CLAY_WEBHOOK_URL or CLAY_API_BASE +
// CLAY_API_KEY) is deliberately not validated at startup: a missing transport
// is a runtime condition surfaced to the user by editing the placeholder
// message, not a boot failure.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Correlation store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Rate limiter backends.
const (
	LimiterLocal = "local"
	LimiterRedis = "redis"
)

// Config holds all configuration values for the enrichment relay.
// All fields correspond to environment variables that can be set to
// override the default values.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)
	TLSCert  string // TLS certificate path (optional)
	TLSKey   string // TLS key path (optional)

	// Slack settings
	SlackBotToken      string // Bot token for Web API calls
	SlackSigningSecret string // Secret for event signature verification
	SlackEventsPath    string // Inbound events endpoint path
	AllowedChannel     string // Optional channel filter

	// Enrichment settings
	ClayWebhookURL    string // Webhook-style submission endpoint
	ClayAPIBase       string // Base URL for direct row creation
	ClayAPIKey        string // Bearer token for Clay
	BotCallbackSecret string // Shared secret echoed back by callbacks
	PublicBaseURL     string // Externally reachable base URL
	CallbackPath      string // Callback endpoint path
	EnrichKeyword     string // Trigger keyword

	// Rate limiting configuration
	RateLimitPerWindow int           // Admissions per actor per window
	RateLimitWindow    time.Duration // Trailing window duration
	RateLimitBackend   string        // "local" or "redis"

	// Correlation store configuration
	CorrelationBackend string // "memory", "redis" or "sqlite"
	SQLitePath         string // SQLite database file path

	// Redis configuration
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       int    // Redis database number (0-15)
	RedisPoolSize int    // Redis connection pool size
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding default
// value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TLSCert:  getEnv("TLS_CERT", ""),
		TLSKey:   getEnv("TLS_KEY", ""),

		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackEventsPath:    getEnv("SLACK_EVENTS_PATH", "/slack/events"),
		AllowedChannel:     getEnv("ALLOWED_CHANNEL", ""),

		ClayWebhookURL:    getEnv("CLAY_WEBHOOK_URL", ""),
		ClayAPIBase:       getEnv("CLAY_API_BASE", ""),
		ClayAPIKey:        getEnv("CLAY_API_KEY", ""),
		BotCallbackSecret: getEnv("BOT_CALLBACK_SECRET", ""),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", ""),
		CallbackPath:      getEnv("CALLBACK_PATH", "/clay/callback"),
		EnrichKeyword:     getEnv("ENRICH_KEYWORD", "enrich"),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 1),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitBackend:   getEnv("RATE_LIMIT_BACKEND", LimiterLocal),

		CorrelationBackend: getEnv("CORRELATION_BACKEND", BackendMemory),
		SQLitePath:         getEnv("SQLITE_PATH", "./enrich_relay.db"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
	}
}

// CallbackURL returns the externally reachable callback address that
// enrichment submissions carry.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + c.CallbackPath
}

// NeedsRedis reports whether any configured backend requires a Redis
// connection.
func (c *Config) NeedsRedis() bool {
	return c.CorrelationBackend == BackendRedis || c.RateLimitBackend == LimiterRedis
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The application should call
// this after Load() and before starting.
func (c *Config) Validate() error {
	if c.SlackBotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN environment variable is required")
	}
	if c.SlackSigningSecret == "" {
		return fmt.Errorf("SLACK_SIGNING_SECRET environment variable is required")
	}
	if c.BotCallbackSecret == "" {
		return fmt.Errorf("BOT_CALLBACK_SECRET environment variable is required")
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if !strings.HasPrefix(c.CallbackPath, "/") {
		return fmt.Errorf("CALLBACK_PATH must start with '/'")
	}
	if !strings.HasPrefix(c.SlackEventsPath, "/") {
		return fmt.Errorf("SLACK_EVENTS_PATH must start with '/'")
	}

	if c.EnrichKeyword == "" {
		return fmt.Errorf("ENRICH_KEYWORD must not be empty")
	}

	if c.RateLimitPerWindow < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_WINDOW must be a positive number")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be a positive duration (e.g. '60s', '1m')")
	}

	switch c.RateLimitBackend {
	case LimiterLocal, LimiterRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be 'local' or 'redis'")
	}

	switch c.CorrelationBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("CORRELATION_BACKEND must be 'memory', 'redis' or 'sqlite'")
	}

	if c.CorrelationBackend == BackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when using the sqlite correlation backend")
	}

	if c.NeedsRedis() {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when using a redis backend")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value if not set or invalid.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a
// default value if not set or invalid. Bare integers are interpreted as
// milliseconds for compatibility with RATE_LIMIT_WINDOW_MS style settings.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
