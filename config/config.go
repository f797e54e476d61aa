// Package config loads server configuration from TOML files, a .env file and
// CARBON_* environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/warp/carbon-engine/engine"
)

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Cache     CacheConfig     `toml:"cache"`
	Engine    EngineConfig    `toml:"engine"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `toml:"port"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// GetShutdownTimeout parses the shutdown timeout, defaulting to 10s.
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageConfig selects the scenario store.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url"`
}

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig selects the model cache.
type CacheConfig struct {
	Driver    string `toml:"driver"`
	RedisAddr string `toml:"redis_addr"`
	TTL       string `toml:"ttl"`
}

// GetTTL parses the cache TTL, defaulting to 1h.
func (c *CacheConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, time.Hour)
}

// EngineConfig holds calculation settings.
type EngineConfig struct {
	InvariantPolicy string `toml:"invariant_policy"` // "warn" or "strict"
	SweepLimit      int    `toml:"sweep_limit"`
}

// Policy returns the configured invariant policy.
func (c *EngineConfig) Policy() engine.InvariantPolicy {
	return engine.ParsePolicy(c.InvariantPolicy)
}

// RetentionConfig controls trash purging.
type RetentionConfig struct {
	Days          int    `toml:"days"`
	CheckInterval string `toml:"check_interval"`
}

// Window returns the retention window.
func (c *RetentionConfig) Window() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// GetCheckInterval parses the purge interval, defaulting to 1h.
func (c *RetentionConfig) GetCheckInterval() time.Duration {
	return parseDuration(c.CheckInterval, time.Hour)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// NewDefaultConfig returns a Config that runs without any external service.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: "10s",
		},
		Storage: StorageConfig{
			Driver:     StorageSQLite,
			SQLitePath: "carbon.db",
		},
		Cache: CacheConfig{
			Driver: CacheMemory,
			TTL:    "1h",
		},
		Engine: EngineConfig{
			InvariantPolicy: string(engine.PolicyWarn),
			SweepLimit:      4,
		},
		Retention: RetentionConfig{
			Days:          30,
			CheckInterval: "1h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads each TOML file in order (later files override earlier, missing
// files are skipped), then .env, then the environment.
func Load(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CARBON_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARBON_PORT: %w", err)
		}
		config.Server.Port = p
	}
	if v := os.Getenv("CARBON_STORAGE_DRIVER"); v != "" {
		config.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("CARBON_SQLITE_PATH"); v != "" {
		config.Storage.SQLitePath = v
	}
	if v := os.Getenv("CARBON_POSTGRES_URL"); v != "" {
		config.Storage.PostgresURL = v
	}
	if v := os.Getenv("CARBON_CACHE_DRIVER"); v != "" {
		config.Cache.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("CARBON_REDIS_ADDR"); v != "" {
		config.Cache.RedisAddr = v
	}
	if v := os.Getenv("CARBON_INVARIANT_POLICY"); v != "" {
		config.Engine.InvariantPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("CARBON_RETENTION_DAYS"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CARBON_RETENTION_DAYS: %w", err)
		}
		config.Retention.Days = d
	}
	if v := os.Getenv("CARBON_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CARBON_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	return nil
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	switch engine.InvariantPolicy(c.Engine.InvariantPolicy) {
	case engine.PolicyWarn, engine.PolicyStrict:
	default:
		return fmt.Errorf("unknown invariant policy %q", c.Engine.InvariantPolicy)
	}

	if c.Retention.Days < 1 {
		return errors.New("retention.days must be at least 1")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
