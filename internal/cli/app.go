package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rickgao/trademonitor/internal/config"
	"github.com/rickgao/trademonitor/internal/database"
	"github.com/rickgao/trademonitor/internal/marketplace"
	"github.com/rickgao/trademonitor/internal/monitor"
	"github.com/rickgao/trademonitor/internal/store"
)

// loadConfig reads --config, or returns defaults when the flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("instance_id", cfg.Instance.ID)
}

// openStore opens the configured trade store, wrapped with the Redis
// cache when redis.url is set.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var st store.Store

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		st = store.NewPostgresStore(pool)
	case config.DriverSQLite:
		logger.Info("opening sqlite store", "path", cfg.Database.SQLitePath)
		s, err := store.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		logger.Warn("using in-memory store (trades will not persist)")
		st = store.NewMemoryStore()
	}

	if cfg.Redis.URL == "" {
		return st, nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		st.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis trade cache enabled", "addr", opt.Addr, "ttl", cfg.Redis.TTL)
	return store.NewCachedStore(st, rdb, cfg.Redis.TTL), nil
}

func newMarketplace(cfg *config.Config, logger *slog.Logger) (*marketplace.Client, error) {
	mc := cfg.Marketplace
	opts := []marketplace.TransportOption{
		marketplace.WithTimeout(mc.Timeout),
		marketplace.WithUserAgent(mc.UserAgent),
		marketplace.WithRateLimit(mc.RateLimit, mc.Burst),
		marketplace.WithRetries(mc.MaxRetries, time.Second),
		marketplace.WithLogger(logger),
	}
	if len(mc.Proxies) > 0 {
		proxies, err := marketplace.ParseProxies(mc.Proxies)
		if err != nil {
			return nil, err
		}
		opts = append(opts, marketplace.WithProxies(proxies))
	}

	return marketplace.NewClient(mc.BaseURL, mc.APIURL,
		marketplace.WithTransport(marketplace.NewHTTPTransport(opts...)),
		marketplace.WithClientLogger(logger),
	), nil
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		Chunks:          cfg.Monitor.Chunks,
		Cooldown:        cfg.Monitor.Cooldown,
		CandidateWindow: cfg.Monitor.CandidateWindow,
		Lookback:        cfg.Monitor.Lookback,
		Pause:           cfg.Monitor.Pause,
	}
}
