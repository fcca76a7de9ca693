package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/trademonitor/internal/httpapi"
	"github.com/rickgao/trademonitor/internal/monitor"
	"github.com/rickgao/trademonitor/internal/version"
)

// RunCmd starts the trade monitor and the query API.
func RunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trade monitor and query API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			logger.Info("starting trademonitor",
				"version", version.Version,
				"commit", version.Commit,
				"driver", cfg.Database.Driver,
				"base_url", cfg.Marketplace.BaseURL,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			market, err := newMarketplace(cfg, logger)
			if err != nil {
				return fmt.Errorf("configure marketplace: %w", err)
			}

			mon := monitor.New(monitorConfig(cfg), market, st, logger)

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      httpapi.NewServer(st, cfg.Server.RateLimitPerMinute, logger).Routes(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 35 * time.Second,
				IdleTimeout:  60 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("query api listening", "port", cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			if err := mon.Start(ctx); err != nil {
				return fmt.Errorf("start monitor: %w", err)
			}

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("received shutdown signal")
			case err := <-serveErr:
				logger.Error("query api failed", "err", err)
				runErr = fmt.Errorf("query api: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("query api shutdown error", "err", err)
			}
			if err := mon.Stop(shutdownCtx); err != nil {
				logger.Error("monitor shutdown error", "err", err)
			}

			logger.Info("trademonitor stopped")
			return runErr
		},
	}
}
