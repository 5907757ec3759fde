// Package config provides centralized configuration for the slicer service.
// Settings come from environment variables with defaults and are validated
// on startup so a bad deployment fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Jobs     JobsConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Layouts  LayoutsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so SSE progress streams stay open
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for jobs (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional Postgres connection for job history.
// When URL is empty, history is kept in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// JobsConfig holds slicing job settings.
type JobsConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 50MB)
	MaxFileSize int64 `env:"JOB_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the number of jobs processed at once (default: 4)
	MaxConcurrent int `env:"JOB_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a new job waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"JOB_MAX_WAIT_TIME" default:"30s"`

	// Workers is the number of goroutines slicing rows within one job (default: 8)
	Workers int `env:"JOB_WORKERS" default:"8"`

	// Timeout bounds a single job (default: 5m)
	Timeout time.Duration `env:"JOB_TIMEOUT" default:"5m"`

	// ResultTTL is how long finished jobs stay downloadable (default: 15m)
	ResultTTL time.Duration `env:"JOB_RESULT_TTL" default:"15m"`
}

// HistoryConfig controls pruning of recorded jobs.
type HistoryConfig struct {
	// RetentionDays is how long job records are kept (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"30"`

	// CheckInterval is how often pruning runs (default: 24h)
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// JobLimit is requests per minute for job creation (default: 20)
	JobLimit int `env:"RATE_LIMIT_JOBS" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// LayoutsConfig points at the YAML file of named width layouts.
type LayoutsConfig struct {
	// Path is optional; no layouts are registered when empty
	Path string `env:"LAYOUTS_PATH"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether a database is configured for job history.
func (c *DatabaseConfig) HistoryEnabled() bool {
	return c.URL != ""
}
