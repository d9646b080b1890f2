// Package config provides configuration management for the application.
//
// Configuration is layered: built-in defaults, then an optional config.yaml
// (with ${VAR} and ${VAR:-default} placeholders expanded from the
// environment), then environment variables, which always win. A .env file in
// the working directory is loaded into the environment first without
// overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBodySizeLimit is the maximum request body size when none is configured (10MB).
	DefaultBodySizeLimit int64 = 10 * 1024 * 1024
	// MinBodySizeLimit is the smallest accepted body size limit (1KB).
	MinBodySizeLimit int64 = 1024
	// MaxBodySizeLimit is the largest accepted body size limit (100MB).
	MaxBodySizeLimit int64 = 100 * 1024 * 1024
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// BodySizeLimit accepts a byte count or a K/M/G suffixed size, e.g. "10M"
	BodySizeLimit      string `yaml:"body_size_limit"`
	SwaggerEnabled     bool   `yaml:"swagger_enabled"`
	CompressionEnabled bool   `yaml:"compression_enabled"`
	// ShutdownTimeout is the graceful shutdown budget in seconds
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the post store backend
type StorageConfig struct {
	// Type is one of: memory, sqlite, postgresql, mongodb, redis
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
	Redis      RedisConfig      `yaml:"redis"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig holds process logging configuration
type LogConfig struct {
	// Format is "json", "pretty", or empty to pick based on whether stdout is a terminal
	Format string `yaml:"format"`
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

var validStorageTypes = map[string]bool{
	"memory":     true,
	"sqlite":     true,
	"postgresql": true,
	"mongodb":    true,
	"redis":      true,
}

// Load reads configuration from defaults, config.yaml, .env and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	if path, ok := findConfigFile(); ok {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		return err
	}
	if !validStorageTypes[c.Storage.Type] {
		return fmt.Errorf("invalid STORAGE_TYPE %q (valid: memory, sqlite, postgresql, mongodb, redis)", c.Storage.Type)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "pretty":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (valid: json, pretty)", c.Log.Format)
	}
	return nil
}

// BodySizeLimitBytes returns the configured body size limit in bytes.
func (c *Config) BodySizeLimitBytes() int64 {
	n, err := ParseBodySizeLimit(c.Server.BodySizeLimit)
	if err != nil || n == 0 {
		return DefaultBodySizeLimit
	}
	return n
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 30,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "data/posts.db",
			},
			PostgreSQL: PostgreSQLConfig{
				MaxConns: 10,
			},
			MongoDB: MongoDBConfig{
				Database: "postapi",
			},
			Redis: RedisConfig{
				KeyPrefix: "postapi",
			},
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func findConfigFile() (string, bool) {
	candidates := []string{"config.yaml", "config/config.yaml"}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		candidates = []string{p}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders.
// A ${VAR} whose variable is unset or empty is left untouched so that
// missing configuration stays visible.
func expandString(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) error {
	strVars := map[string]*string{
		"PORT":             &cfg.Server.Port,
		"BODY_SIZE_LIMIT":  &cfg.Server.BodySizeLimit,
		"STORAGE_TYPE":     &cfg.Storage.Type,
		"SQLITE_PATH":      &cfg.Storage.SQLite.Path,
		"POSTGRES_URL":     &cfg.Storage.PostgreSQL.URL,
		"MONGODB_URL":      &cfg.Storage.MongoDB.URL,
		"MONGODB_DATABASE": &cfg.Storage.MongoDB.Database,
		"REDIS_URL":        &cfg.Storage.Redis.URL,
		"REDIS_KEY_PREFIX": &cfg.Storage.Redis.KeyPrefix,
		"METRICS_ENDPOINT": &cfg.Metrics.Endpoint,
		"LOG_FORMAT":       &cfg.Log.Format,
		"LOG_LEVEL":        &cfg.Log.Level,
	}
	for key, dst := range strVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"POSTGRES_MAX_CONNS": &cfg.Storage.PostgreSQL.MaxConns,
		"SHUTDOWN_TIMEOUT":   &cfg.Server.ShutdownTimeout,
	}
	for key, dst := range intVars {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	boolVars := map[string]*bool{
		"SWAGGER_ENABLED":     &cfg.Server.SwaggerEnabled,
		"COMPRESSION_ENABLED": &cfg.Server.CompressionEnabled,
		"METRICS_ENABLED":     &cfg.Metrics.Enabled,
	}
	for key, dst := range boolVars {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = b
	}

	return nil
}

var bodySizePattern = regexp.MustCompile(`^(\d+)(?:([KMG])B?)?$`)

// ParseBodySizeLimit converts a size such as "512K" or "10MB" to bytes.
// An empty string yields 0, meaning "use the default".
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid body size limit %q: expected a number optionally followed by K, M or G", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", s, err)
	}
	var multiplier int64 = 1
	switch m[2] {
	case "K":
		multiplier = 1024
	case "M":
		multiplier = 1024 * 1024
	case "G":
		multiplier = 1024 * 1024 * 1024
	}
	if n > MaxBodySizeLimit/multiplier {
		return 0, fmt.Errorf("body size limit %q out of range (1K..100M)", s)
	}
	return n * multiplier, nil
}

// ValidateBodySizeLimit checks that s parses and lies within 1KB..100MB.
func ValidateBodySizeLimit(s string) error {
	n, err := ParseBodySizeLimit(s)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if n < MinBodySizeLimit || n > MaxBodySizeLimit {
		return fmt.Errorf("body size limit %q out of range (1K..100M)", s)
	}
	return nil
}
