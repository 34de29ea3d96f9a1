package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "WASM_DIR", "MANAGEHUB_CONFIG", "MANAGEHUB_SERVER_ADDR", "MANAGEHUB_STORE_DRIVER"} {
		t.Setenv(k, "")
	}
	// Run from a directory without a project config file.
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Fatalf("expected sqlite without a database url, got %q", cfg.Store.Driver)
	}
	if cfg.Board.RequestTimeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.Board.RequestTimeout)
	}
	if cfg.Redis.TTL != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %v", cfg.Redis.TTL)
	}
}

func TestLoadBareEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/managehub")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DatabaseURL == "" {
		t.Fatalf("expected postgres from DATABASE_URL, got %+v", cfg.Store)
	}
}

func TestLoadFileAndPrefixedEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "managehub.yaml")
	body := `
server:
  addr: ":7000"
board:
  request_timeout: 3s
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANAGEHUB_SERVER_ADDR", ":7100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7100" {
		t.Fatalf("env should override file, got %q", cfg.Server.Addr)
	}
	if cfg.Board.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.Board.RequestTimeout)
	}
	logger := cfg.Log.NewLogger()
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", logger.Formatter)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store: StoreConfig{Driver: DriverSQLite, SQLitePath: "x.db"},
			Board: BoardConfig{RequestTimeout: time.Second},
			Log:   LogConfig{Level: "info", Format: "text"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "unknown store.driver"},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, "database_url"},
		{"zero timeout", func(c *Config) { c.Board.RequestTimeout = 0 }, "request_timeout"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		c := base()
		tc.mutate(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}

	c := base()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
