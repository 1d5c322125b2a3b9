package config

import (
	"time"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/scoring"
)

// Config represents the complete application configuration.
// Precedence, lowest first: defaults, config file, environment, runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
	AILink    ailink.Config   `mapstructure:"ailink"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Scoring   scoring.Weights `mapstructure:"scoring"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Store     StoreConfig     `mapstructure:"store"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustForwardedFor takes the caller identity from X-Forwarded-For.
	// Enable only behind a proxy that sets the header.
	TrustForwardedFor bool `mapstructure:"trust_forwarded_for"`
}

// ScanConfig tunes discovery and platform queries.
type ScanConfig struct {
	Platforms         []core.PlatformSpec `mapstructure:"platforms"`
	DiscoveryModel    string              `mapstructure:"discovery_model"`
	DiscoveryTimeout  time.Duration       `mapstructure:"discovery_timeout"`
	PlatformTimeout   time.Duration       `mapstructure:"platform_timeout"`
	Parallel          bool                `mapstructure:"parallel"`
	MaxConcurrency    int                 `mapstructure:"max_concurrency"`
	AnnounceDiscovery bool                `mapstructure:"announce_discovery"`
	ExcerptLength     int                 `mapstructure:"excerpt_length"`
}

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendLibsql = "libsql"
)

// RateLimitConfig selects where scan quotas are counted.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"`
	Requests      int           `mapstructure:"requests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig points at the shared counter server.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`
}
