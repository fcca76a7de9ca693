package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-monitor
marketplace:
  base_url: https://example.test
  rate_limit: 2.5
  proxies:
    - http://proxy-1:8080
    - http://proxy-2:8080
database:
  driver: postgres
  postgres:
    host: localhost
    port: 5432
    name: trades
    user: testuser
    password: testpass
monitor:
  cooldown: 24h
  candidate_window: 5m
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-monitor" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-monitor")
	}
	if cfg.Marketplace.BaseURL != "https://example.test" {
		t.Errorf("Marketplace.BaseURL = %q", cfg.Marketplace.BaseURL)
	}
	if cfg.Marketplace.RateLimit != 2.5 {
		t.Errorf("Marketplace.RateLimit = %v, want 2.5", cfg.Marketplace.RateLimit)
	}
	if len(cfg.Marketplace.Proxies) != 2 {
		t.Errorf("len(Proxies) = %d, want 2", len(cfg.Marketplace.Proxies))
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
	if cfg.Monitor.Cooldown != 24*time.Hour {
		t.Errorf("Monitor.Cooldown = %v, want 24h", cfg.Monitor.Cooldown)
	}
	if cfg.Monitor.CandidateWindow != 5*time.Minute {
		t.Errorf("Monitor.CandidateWindow = %v, want 5m", cfg.Monitor.CandidateWindow)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_REDIS_URL", "redis://cache:6379/0")

	yaml := `
instance:
  id: test-monitor
database:
  postgres:
    password: ${TEST_DB_PASSWORD}
redis:
  url: ${TEST_REDIS_URL}
`
	cfg, err := Load(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
	if cfg.Redis.URL != "redis://cache:6379/0" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, "instance:\n  id: test-monitor\n"))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Marketplace.BaseURL != DefaultBaseURL {
		t.Errorf("Marketplace.BaseURL = %q, want default %q", cfg.Marketplace.BaseURL, DefaultBaseURL)
	}
	if cfg.Marketplace.APIURL != DefaultAPIURL {
		t.Errorf("Marketplace.APIURL = %q, want default %q", cfg.Marketplace.APIURL, DefaultAPIURL)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMemory)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Monitor.Chunks != 10 {
		t.Errorf("Monitor.Chunks = %d, want 10", cfg.Monitor.Chunks)
	}
	if cfg.Monitor.Cooldown != 48*time.Hour {
		t.Errorf("Monitor.Cooldown = %v, want 48h", cfg.Monitor.Cooldown)
	}
	if cfg.Monitor.CandidateWindow != 600000*time.Millisecond {
		t.Errorf("Monitor.CandidateWindow = %v, want 600000ms", cfg.Monitor.CandidateWindow)
	}
	if cfg.Monitor.Lookback != 10*time.Hour {
		t.Errorf("Monitor.Lookback = %v, want 10h", cfg.Monitor.Lookback)
	}
	if cfg.Monitor.Pause != 0 {
		t.Errorf("Monitor.Pause = %v, want 0", cfg.Monitor.Pause)
	}
	if cfg.Server.RateLimitPerMinute != DefaultRateLimitPerMinute {
		t.Errorf("Server.RateLimitPerMinute = %d, want %d", cfg.Server.RateLimitPerMinute, DefaultRateLimitPerMinute)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	_, err := LoadAndValidate(writeTempFile(t, "instance:\n  id: x\ndatabase:\n  driver: oracle\n"))
	if err == nil || !strings.HasPrefix(err.Error(), "validate config:") {
		t.Fatalf("err = %v, want validate config error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Marketplace.BaseURL = "/item" },
			wantErr: `marketplace.base_url must be an absolute URL, got "/item"`,
		},
		{
			name:    "bad proxy",
			mutate:  func(c *Config) { c.Marketplace.Proxies = []string{"proxy:8080"} },
			wantErr: `marketplace.proxies[0] must be an absolute URL, got "proxy:8080"`,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: `database.driver must be one of postgres, sqlite, memory, got "oracle"`,
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: "database.postgres.host is required",
		},
		{
			name: "postgres url skips field checks",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.Postgres.URL = "postgres://u:p@db/trades"
			},
			wantErr: "",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "zero chunks",
			mutate:  func(c *Config) { c.Monitor.Chunks = 0 },
			wantErr: "monitor.chunks must be >= 1",
		},
		{
			name:    "server port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `log.level "loud" is invalid`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	level, err := LogConfig{Level: "debug"}.SlogLevel()
	if err != nil {
		t.Fatalf("SlogLevel failed: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
