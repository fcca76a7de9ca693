package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateURL("marketplace.base_url", c.Marketplace.BaseURL); err != nil {
		return err
	}
	if err := validateURL("marketplace.api_url", c.Marketplace.APIURL); err != nil {
		return err
	}
	if c.Marketplace.RateLimit < 0 {
		return errors.New("marketplace.rate_limit must be >= 0")
	}
	if c.Marketplace.MaxRetries < 0 {
		return errors.New("marketplace.max_retries must be >= 0")
	}
	for i, p := range c.Marketplace.Proxies {
		if err := validateURL(fmt.Sprintf("marketplace.proxies[%d]", i), p); err != nil {
			return err
		}
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Postgres.URL == "" {
			if err := c.Database.Postgres.validate("database.postgres"); err != nil {
				return err
			}
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, memory, got %q", c.Database.Driver)
	}

	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		return errors.New("redis.ttl must be > 0")
	}

	if c.Monitor.Chunks < 1 {
		return errors.New("monitor.chunks must be >= 1")
	}
	if c.Monitor.Cooldown < 0 {
		return errors.New("monitor.cooldown must be >= 0")
	}
	if c.Monitor.CandidateWindow < 0 {
		return errors.New("monitor.candidate_window must be >= 0")
	}
	if c.Monitor.Pause < 0 {
		return errors.New("monitor.pause must be >= 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 1 {
		return errors.New("server.rate_limit_per_minute must be >= 1")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q is invalid", l.Level)
	}
	return level, nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
