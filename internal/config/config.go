package config

import "time"

// Config is the root configuration for a trademonitor instance.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// MarketplaceConfig holds marketplace endpoints and transport settings.
type MarketplaceConfig struct {
	BaseURL    string        `yaml:"base_url"`   // HTML pages (catalog, item, uaid, player)
	APIURL     string        `yaml:"api_url"`    // JSON API (player assets)
	UserAgent  string        `yaml:"user_agent"` // empty = browser-like default
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst      int           `yaml:"burst"`
	MaxRetries int           `yaml:"max_retries"`
	Proxies    []string      `yaml:"proxies"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DatabaseConfig selects and configures the trade store.
type DatabaseConfig struct {
	Driver     string   `yaml:"driver"`
	Postgres   DBConfig `yaml:"postgres"`
	SQLitePath string   `yaml:"sqlite_path"`
}

// DBConfig holds a single Postgres connection. URL, when set, takes
// precedence over the individual fields.
type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig enables the trade read cache. Empty URL disables it.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// MonitorConfig holds trade inference loop settings.
type MonitorConfig struct {
	Chunks          int           `yaml:"chunks"`
	Cooldown        time.Duration `yaml:"cooldown"`
	CandidateWindow time.Duration `yaml:"candidate_window"`
	Lookback        time.Duration `yaml:"lookback"`
	Pause           time.Duration `yaml:"pause"`
}

// ServerConfig holds the query API / metrics listener settings.
type ServerConfig struct {
	Port               int `yaml:"port"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
