// Package config loads storewatchd configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for storewatchd.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	LogFormat       string        `mapstructure:"log_format"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
	Storage         StorageConfig `mapstructure:"storage"`
}

// StorageConfig defines the database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $STOREWATCHD_CONFIG env → ~/.config/storewatchd/config.yaml → /etc/storewatchd/config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("default_timezone", "America/Chicago")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "storewatchd.db")

	// Env var support
	v.SetEnvPrefix("STOREWATCHD")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("STOREWATCHD_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		// Try ~/.config/storewatchd/config.yaml first
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "storewatchd"))
		}
		// Fall back to /etc/storewatchd/config.yaml
		v.AddConfigPath("/etc/storewatchd")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	if c.DefaultTimezone != "" {
		if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
			return fmt.Errorf("default_timezone %q is not a valid IANA zone: %w", c.DefaultTimezone, err)
		}
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}
