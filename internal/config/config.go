// Package config loads and validates application configuration from defaults,
// an optional YAML file and QUIZ_* environment variables, in that order.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

var (
	ErrMissingFlowDir     = errors.New("flow directory is required")
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrMissingDSN         = errors.New("store dsn is required")
	ErrInvalidAddr        = errors.New("invalid listen address")
	ErrInvalidKey         = errors.New("encryption key must be 32 bytes, base64 encoded")
)

// Config is the root application configuration.
type Config struct {
	FlowDir  string         `yaml:"flow_dir"`
	Watch    bool           `yaml:"watch"`
	Strict   bool           `yaml:"strict"`
	LogLevel string         `yaml:"log_level"`
	LogJSON  bool           `yaml:"log_json"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         bool          `yaml:"metrics"`
}

// StoreConfig selects and parameterizes the session store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN is the file store directory, the redis address or the SQL data source.
	DSN      string        `yaml:"dsn"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// SecurityConfig enables the store middleware.
type SecurityConfig struct {
	// EncryptionKey is a base64 encoded 32 byte AES key. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys decrypt answers written under rotated keys.
	FallbackKeys []string `yaml:"fallback_keys"`
	// PIIFields are step ids or shortcodes (regular expressions) masked before storage.
	PIIFields []string `yaml:"pii_fields"`
}

// TracingConfig enables span export to stderr.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		FlowDir:  "flows",
		LogLevel: "info",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Metrics:         true,
		},
		Store: StoreConfig{
			Driver:  StoreMemory,
			Prefix:  "quiz:",
			LockTTL: 30 * time.Second,
		},
	}
}

// Load reads defaults, overlays path when it is not empty, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from QUIZ_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("QUIZ_FLOW_DIR", &cfg.FlowDir)
	boolean("QUIZ_WATCH", &cfg.Watch)
	boolean("QUIZ_STRICT", &cfg.Strict)
	str("QUIZ_LOG_LEVEL", &cfg.LogLevel)
	boolean("QUIZ_LOG_JSON", &cfg.LogJSON)
	str("QUIZ_ADDR", &cfg.Server.Addr)
	boolean("QUIZ_METRICS", &cfg.Server.Metrics)
	str("QUIZ_STORE", &cfg.Store.Driver)
	str("QUIZ_STORE_DSN", &cfg.Store.DSN)
	str("QUIZ_STORE_PASSWORD", &cfg.Store.Password)
	str("QUIZ_STORE_PREFIX", &cfg.Store.Prefix)
	duration("QUIZ_STORE_TTL", &cfg.Store.TTL)
	duration("QUIZ_LOCK_TTL", &cfg.Store.LockTTL)
	str("QUIZ_ENCRYPTION_KEY", &cfg.Security.EncryptionKey)
	if v, ok := lookup("QUIZ_PII_FIELDS"); ok && v != "" {
		cfg.Security.PIIFields = splitList(v)
	}
	boolean("QUIZ_TRACING", &cfg.Tracing.Enabled)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration. All problems are joined in one error.
func (c *Config) Validate() error {
	var errs []error
	if c.FlowDir == "" {
		errs = append(errs, ErrMissingFlowDir)
	}
	if !strings.Contains(c.Server.Addr, ":") {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidAddr, c.Server.Addr))
	}
	switch c.Store.Driver {
	case StoreMemory, StoreFile:
	case StoreRedis, StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("%w for %s", ErrMissingDSN, c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver))
	}
	if c.Security.EncryptionKey != "" {
		if _, err := c.Security.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Keys decodes the active encryption key followed by the fallback keys.
func (s SecurityConfig) Keys() ([][]byte, error) {
	encoded := append([]string{s.EncryptionKey}, s.FallbackKeys...)
	keys := make([][]byte, 0, len(encoded))
	for _, k := range encoded {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil || len(key) != 32 {
			return nil, ErrInvalidKey
		}
		keys = append(keys, key)
	}
	return keys, nil
}
