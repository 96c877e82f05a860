// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Widget   WidgetConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Tracing  TracingConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// WidgetConfig holds file submission widget settings.
type WidgetConfig struct {
	// MaxFileSize is the largest accepted file in bytes (default: 10MB)
	MaxFileSize int64 `env:"WIDGET_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrentDecodes bounds parallel blob decodes across widgets (default: 8)
	MaxConcurrentDecodes int `env:"WIDGET_MAX_CONCURRENT_DECODES" default:"8"`

	// DecodeWaitTime is how long a decode waits for a free slot (default: 30s)
	DecodeWaitTime time.Duration `env:"WIDGET_DECODE_WAIT_TIME" default:"30s"`

	// AcceptedTypes is the single-mode MIME/extension allow-list
	AcceptedTypes []string `env:"WIDGET_ACCEPTED_TYPES" default:"text/csv,text/plain,.csv"`

	// FetchConcurrency bounds parallel prior-submission fetches per widget (default: 4)
	FetchConcurrency int `env:"WIDGET_FETCH_CONCURRENCY" default:"4"`

	// LoadTimeout bounds one prior-submission load (default: 30s)
	LoadTimeout time.Duration `env:"WIDGET_LOAD_TIMEOUT" default:"30s"`

	// IdleTTL destroys widgets nobody touched for this long (default: 2h)
	IdleTTL time.Duration `env:"WIDGET_IDLE_TTL" default:"2h"`

	// SweepInterval is how often idle widgets are swept (default: 5m)
	SweepInterval time.Duration `env:"WIDGET_SWEEP_INTERVAL" default:"5m"`
}

// DatabaseConfig holds settings for the prior-submission table.
// The database is optional; leave DATABASE_URL empty to disable it.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// StorageConfig holds S3-compatible object storage settings for prior
// submissions. Leave MINIO_ENDPOINT empty to disable it.
type StorageConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envAlt:"MINIO_ROOT_USER"`
	SecretKey string `env:"MINIO_SECRET_KEY" envAlt:"MINIO_ROOT_PASSWORD"`

	// Bucket holds submitted files (default: submissions)
	Bucket string `env:"MINIO_BUCKET" default:"submissions"`

	// Prefix is prepended to every object key, e.g. "term-1/"
	Prefix string `env:"MINIO_PREFIX"`

	UseSSL bool `env:"MINIO_USE_SSL" default:"false"`
}

// Enabled reports whether object storage is configured.
func (c StorageConfig) Enabled() bool { return c.Endpoint != "" }

// RedisConfig holds settings for the field value cache.
// Leave REDIS_ADDR empty to disable it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`

	// FieldTTL is how long a mirrored field value is kept (default: 24h)
	FieldTTL time.Duration `env:"REDIS_FIELD_TTL" default:"24h"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns on OTLP trace export (default: false)
	Enabled bool `env:"TRACING_ENABLED" default:"false"`

	// Endpoint is the OTLP/HTTP collector host:port (default: localhost:4318)
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`

	// ServiceName identifies this service in traces (default: csvsubmit)
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"csvsubmit"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for file drop endpoints (default: 30)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
