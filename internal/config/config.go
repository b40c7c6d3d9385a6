// Package config provides centralized configuration management for dialcodes.
// Settings come from environment variables with sensible defaults and are
// validated on startup so a misconfigured server or CLI fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Code     CodeConfig
	Render   RenderConfig
	Review   ReviewConfig
	UI       UIConfig
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

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"` // 0 keeps the SSE feed open
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 15s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// StoreConfig selects and tunes the key-value backend that persists the record set.
type StoreConfig struct {
	// Driver is one of: sqlite, postgres, memory (default: sqlite)
	Driver string `env:"STORE_DRIVER" default:"sqlite"`

	// DSN is a file path for sqlite or a connection string for postgres.
	// DATABASE_URL is accepted for postgres deployments.
	DSN string `env:"STORE_DSN" envAlt:"DATABASE_URL" default:"dialcodes.db"`

	// Key is the storage key the record set lives under.
	Key string `env:"STORE_KEY" default:"qr-code-orders"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CodeConfig controls payload construction and the rendered image.
type CodeConfig struct {
	// BaseURL is the origin used for link-redirect payloads.
	// When empty the web server derives it from the incoming request.
	BaseURL string `env:"CODE_BASE_URL"`

	// Size is the edge length of the exported PNG in pixels (default: 200)
	Size int `env:"CODE_SIZE" default:"200"`

	// Margin is the quiet zone in modules (default: 2)
	Margin int `env:"CODE_MARGIN" default:"2"`

	// DefaultMode is direct-dial or link-redirect (default: direct-dial)
	DefaultMode string `env:"CODE_DEFAULT_MODE" default:"direct-dial"`
}

// RenderConfig bounds concurrent code rendering in the web server.
type RenderConfig struct {
	MaxConcurrent int           `env:"RENDER_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"RENDER_MAX_WAIT_TIME" default:"5s"`
}

// ReviewConfig controls server-side sequential review sessions.
type ReviewConfig struct {
	// TTL is how long an idle review session is kept (default: 30m)
	TTL time.Duration `env:"REVIEW_TTL" default:"30m"`

	// SweepInterval is how often expired sessions are removed (default: 5m)
	SweepInterval time.Duration `env:"REVIEW_SWEEP_INTERVAL" default:"5m"`
}

// UIConfig holds presentation settings shared by the web and terminal UIs.
type UIConfig struct {
	PageSize int `env:"UI_PAGE_SIZE" default:"10"`

	// ErrorSummary is how many per-line import errors are spelled out (default: 3)
	ErrorSummary int `env:"UI_ERROR_SUMMARY" default:"3"`

	// MaxImportBytes caps pasted text and uploaded files (default: 10MB)
	MaxImportBytes int64 `env:"UI_MAX_IMPORT_BYTES" default:"10485760"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ImportLimit is requests per minute for import endpoints (default: 20)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

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
