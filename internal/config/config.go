// Package config loads managehub settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Board  BoardConfig  `mapstructure:"board"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	WebDir string `mapstructure:"web_dir"`
}

// StoreConfig selects the persistence backend. An empty driver means
// postgres when a database URL is set and sqlite otherwise.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// RedisConfig enables the reference-data cache when URL is set.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type BoardConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProjectPath is the config file picked up from the working directory.
func ProjectPath() string {
	return filepath.Join(".managehub", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.web_dir", "web")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", filepath.Join(".managehub", "managehub.db"))
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("board.request_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load builds the configuration. path may be empty, in which case
// MANAGEHUB_CONFIG and then ProjectPath are tried; a missing project file is
// not an error. Environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MANAGEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bare variables used by container deployments.
	_ = v.BindEnv("store.database_url", "MANAGEHUB_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.web_dir", "MANAGEHUB_SERVER_WEB_DIR", "WASM_DIR")

	if path == "" {
		path = os.Getenv("MANAGEHUB_CONFIG")
	}
	required := path != ""
	if path == "" {
		path = ProjectPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if required {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv("MANAGEHUB_SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
		if cfg.Store.DatabaseURL != "" {
			cfg.Store.Driver = DriverPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the binaries cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Board.RequestTimeout <= 0 {
		errs = append(errs, errors.New("board.request_timeout must be positive"))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis.ttl must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NewLogger returns a logrus logger with the configured level and format.
func (c LogConfig) NewLogger() *log.Logger {
	logger := log.New()
	if lvl, err := log.ParseLevel(c.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if c.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}
