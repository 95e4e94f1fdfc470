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
	Server    ServerConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Session   SessionConfig
	Reference ReferenceConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig holds the student-management REST API settings.
type BackendConfig struct {
	// URL is the API base URL (required)
	URL string `env:"BACKEND_URL" envAlt:"API_BASE_URL" required:"true"`

	// Token is sent as a bearer token when set
	Token string `env:"BACKEND_TOKEN"`

	// Timeout bounds each backend request, including the batch call (default: 30s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`

	CampusesPath string `env:"BACKEND_CAMPUSES_PATH" default:"/campuses"`
	CoursesPath  string `env:"BACKEND_COURSES_PATH" default:"/courses"`
	BatchPath    string `env:"BACKEND_BATCH_PATH" default:"/students/batch"`

	// CoursePageSize is the page size used when listing courses (default: 100)
	CoursePageSize int `env:"BACKEND_COURSE_PAGE_SIZE" default:"100"`

	// RequestsPerSecond throttles all backend calls; fractions allowed (default: 10)
	RequestsPerSecond float64 `env:"BACKEND_RPS" default:"10"`

	// Burst is the token bucket size (default: 5)
	Burst int `env:"BACKEND_BURST" default:"5"`
}

// DatabaseConfig holds the optional submission history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; history is disabled when empty.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel parses and submissions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// HeaderSearchRows is how many leading rows are scanned for the header (default: 20)
	HeaderSearchRows int `env:"UPLOAD_HEADER_SEARCH_ROWS" default:"20"`
}

// SessionConfig holds import session settings.
type SessionConfig struct {
	// TTL is how long an untouched session is kept (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// SweepInterval is how often expired sessions are removed (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// RedirectDelay is the delay hinted to clients after a clean submission (default: 1.5s)
	RedirectDelay time.Duration `env:"SESSION_REDIRECT_DELAY" default:"1500ms"`

	// PageSize is the default row page size for the rows endpoint (default: 50)
	PageSize int `env:"SESSION_PAGE_SIZE" default:"50"`
}

// ReferenceConfig holds campus/course reference data settings.
type ReferenceConfig struct {
	// CacheTTL is how long fetched reference data is reused (default: 5m)
	CacheTTL time.Duration `env:"REFERENCE_CACHE_TTL" default:"5m"`

	// RefreshInterval is how often reference data is refreshed in the background; 0 disables (default: 15m)
	RefreshInterval time.Duration `env:"REFERENCE_REFRESH_INTERVAL" default:"15m"`

	// CityCodesFile is an optional YAML file of extra city abbreviations
	CityCodesFile string `env:"CITY_CODES_FILE"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and submit endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enforces X-API-Key on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
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
