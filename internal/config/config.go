// Package config loads CLI and server settings from file, environment and defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BLOCKSYNC_SNAPSHOTS_BACKEND.
const EnvPrefix = "BLOCKSYNC"

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Log       LogConfig
	Snapshots SnapshotsConfig
	HTTP      HTTPConfig
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
	// File additionally receives every record as a JSON line.
	File string
}

// SnapshotsConfig selects and configures the snapshot backend.
type SnapshotsConfig struct {
	Backend       string
	Dir           string
	SQLitePath    string `mapstructure:"sqlite_path"`
	Redis         RedisConfig
	EncryptionKey string `mapstructure:"encryption_key"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr string
}

// Load reads configuration from path (if non-empty), then applies
// BLOCKSYNC_* environment overrides over defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("snapshots.backend", BackendFile)
	v.SetDefault("snapshots.dir", filepath.Join(".blocksync", "snapshots"))
	v.SetDefault("snapshots.sqlite_path", filepath.Join(".blocksync", "snapshots.db"))
	v.SetDefault("snapshots.redis.addr", "localhost:6379")
	v.SetDefault("snapshots.redis.password", "")
	v.SetDefault("snapshots.redis.db", 0)
	v.SetDefault("snapshots.redis.prefix", "blocksync:snapshot:")
	v.SetDefault("snapshots.redis.ttl", time.Duration(0))
	v.SetDefault("snapshots.encryption_key", "")
	v.SetDefault("http.addr", ":8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings no backend can serve.
func (c Config) Validate() error {
	switch c.Snapshots.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
		return nil
	}
	return fmt.Errorf("unknown snapshots backend %q", c.Snapshots.Backend)
}
