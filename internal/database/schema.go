package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the trade tables and their lookup indexes.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id     UUID PRIMARY KEY,
		user_one_id  BIGINT NOT NULL,
		user_two_id  BIGINT NOT NULL,
		timestamp_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trade_items (
		trade_id UUID NOT NULL REFERENCES trades (trade_id),
		user_id  BIGINT NOT NULL,
		item_id  BIGINT NOT NULL,
		uaid     BIGINT NOT NULL,
		received BOOLEAN NOT NULL,
		PRIMARY KEY (trade_id, uaid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_items_uaid ON trade_items (uaid)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_items_item_id ON trade_items (item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_user_one ON trades (user_one_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_user_two ON trades (user_two_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades (timestamp_ms DESC)`,
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
