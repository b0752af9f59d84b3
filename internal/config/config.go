// ===========================================
// Package config - Application Configuration
// ===========================================
// Configuration is resolved in three layers, later layers win:
//
//  1. Built-in defaults (good enough for local development)
//  2. Optional YAML file named by CONFIG_FILE
//  3. Environment variables
//
// Load once at startup and pass the struct (or one of its
// sections) to the component that needs it.
// ===========================================

package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported backing store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the client IP is always the connection's peer address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// StoreConfig selects and sizes the backing persistent store.
type StoreConfig struct {
	Driver           string        `yaml:"driver"` // "postgres" or "sqlite"
	URL              string        `yaml:"url"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	MaxIdleConns     int           `yaml:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
	OperationTimeout time.Duration `yaml:"operation_timeout"` // bound applied to every store call
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

// RedisConfig contains Redis connection settings.
// An empty URL disables the resolve cache and rate limiting.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// ShortenerConfig contains short code settings.
type ShortenerConfig struct {
	DefaultCodeLength int    `yaml:"default_code_length"`
	MaxAttempts       int    `yaml:"max_attempts"`
	BaseURL           string `yaml:"base_url"`
}

// RecorderConfig sizes the asynchronous click recorder.
type RecorderConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig holds the admin API keys. No keys means the admin API is open.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// NewLogger builds the configured handler on w. Unknown levels fall
// back to info.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:           DriverSQLite,
			URL:              "file:app.db",
			MaxOpenConns:     25,
			MaxIdleConns:     5,
			ConnMaxLifetime:  5 * time.Minute,
			OperationTimeout: 3 * time.Second,
			AutoMigrate:      true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 3,
			CacheTTL:     time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Shortener: ShortenerConfig{
			DefaultCodeLength: 6,
			MaxAttempts:       10,
			BaseURL:           "http://localhost:8080",
		},
		Recorder: RecorderConfig{
			Workers:      4,
			QueueSize:    1024,
			WriteTimeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// and environment variables, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getDurationEnv("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		c.Server.TrustedProxies = splitList(proxies)
	}

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.URL = getEnv("DATABASE_URL", c.Store.URL)
	c.Store.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Store.MaxOpenConns)
	c.Store.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Store.MaxIdleConns)
	c.Store.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", c.Store.ConnMaxLifetime)
	c.Store.OperationTimeout = getDurationEnv("DB_OPERATION_TIMEOUT", c.Store.OperationTimeout)
	c.Store.AutoMigrate = getBoolEnv("DB_AUTO_MIGRATE", c.Store.AutoMigrate)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getIntEnv("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MinIdleConns = getIntEnv("REDIS_MIN_IDLE_CONNS", c.Redis.MinIdleConns)
	c.Redis.CacheTTL = getDurationEnv("REDIS_CACHE_TTL", c.Redis.CacheTTL)

	c.RateLimit.RequestsPerMinute = getIntEnv("RATE_LIMIT_RPM", c.RateLimit.RequestsPerMinute)

	c.Shortener.DefaultCodeLength = getIntEnv("SHORT_CODE_LENGTH", c.Shortener.DefaultCodeLength)
	c.Shortener.MaxAttempts = getIntEnv("SHORT_CODE_MAX_ATTEMPTS", c.Shortener.MaxAttempts)
	c.Shortener.BaseURL = getEnv("BASE_URL", c.Shortener.BaseURL)

	c.Recorder.Workers = getIntEnv("RECORDER_WORKERS", c.Recorder.Workers)
	c.Recorder.QueueSize = getIntEnv("RECORDER_QUEUE_SIZE", c.Recorder.QueueSize)
	c.Recorder.WriteTimeout = getDurationEnv("RECORDER_WRITE_TIMEOUT", c.Recorder.WriteTimeout)

	if keys := os.Getenv("ADMIN_API_KEYS"); keys != "" {
		c.Auth.APIKeys = splitList(keys)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.URL == "" {
		return fmt.Errorf("store URL is required")
	}
	for _, p := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("trusted proxy %q is not an IP or CIDR", p)
		}
	}
	if c.Shortener.DefaultCodeLength < 3 || c.Shortener.DefaultCodeLength > 32 {
		return fmt.Errorf("short code length must be between 3 and 32, got %d", c.Shortener.DefaultCodeLength)
	}
	if c.Shortener.MaxAttempts < 1 {
		return fmt.Errorf("short code max attempts must be positive, got %d", c.Shortener.MaxAttempts)
	}
	if c.Recorder.Workers < 1 {
		return fmt.Errorf("recorder workers must be positive, got %d", c.Recorder.Workers)
	}
	if c.Recorder.QueueSize < 0 {
		return fmt.Errorf("recorder queue size must not be negative, got %d", c.Recorder.QueueSize)
	}
	return nil
}

// ===========================================
// Helper Functions
// ===========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv keeps the default when the value does not parse.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDurationEnv accepts formats like "5s", "10m", "1h".
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
