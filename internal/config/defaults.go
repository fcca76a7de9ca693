package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL            = "https://www.rolimons.com"
	DefaultAPIURL             = "https://api.rolimons.com"
	DefaultTimeout            = 30 * time.Second
	DefaultBurst              = 1
	DefaultDriver             = DriverMemory
	DefaultSQLitePath         = "trademonitor.db"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultRedisTTL           = time.Hour
	DefaultChunks             = 10
	DefaultCooldown           = 48 * time.Hour
	DefaultCandidateWindow    = 10 * time.Minute
	DefaultLookback           = 10 * time.Hour
	DefaultServerPort         = 8080
	DefaultRateLimitPerMinute = 60
	DefaultLogLevel           = "info"
)

func (c *Config) applyDefaults() {
	// Marketplace defaults
	if c.Marketplace.BaseURL == "" {
		c.Marketplace.BaseURL = DefaultBaseURL
	}
	if c.Marketplace.APIURL == "" {
		c.Marketplace.APIURL = DefaultAPIURL
	}
	if c.Marketplace.Timeout == 0 {
		c.Marketplace.Timeout = DefaultTimeout
	}
	if c.Marketplace.Burst == 0 {
		c.Marketplace.Burst = DefaultBurst
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Database.Postgres)

	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	// Monitor defaults. Pause stays zero: cycles run back to back.
	if c.Monitor.Chunks == 0 {
		c.Monitor.Chunks = DefaultChunks
	}
	if c.Monitor.Cooldown == 0 {
		c.Monitor.Cooldown = DefaultCooldown
	}
	if c.Monitor.CandidateWindow == 0 {
		c.Monitor.CandidateWindow = DefaultCandidateWindow
	}
	if c.Monitor.Lookback == 0 {
		c.Monitor.Lookback = DefaultLookback
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = DefaultRateLimitPerMinute
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
