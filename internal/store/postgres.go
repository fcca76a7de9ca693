package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/trademonitor/internal/model"
)

const (
	insertTradeSQL = `
		INSERT INTO trades (trade_id, user_one_id, user_two_id, timestamp_ms)
		VALUES ($1, $2, $3, $4)`
	insertTradeItemSQL = `
		INSERT INTO trade_items (trade_id, user_id, item_id, uaid, received)
		VALUES ($1, $2, $3, $4, $5)`
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options

	// One write in flight at a time.
	writeMu sync.Mutex
}

// NewPostgresStore creates a new PostgreSQL-backed store. The schema must
// already exist (see database.Migrate).
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: buildOptions(opts)}
}

func (s *PostgresStore) SaveTrade(ctx context.Context, t *model.Trade) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertTradeSQL, t.ID, t.UserA, t.UserB, t.TimestampMs); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}

		batch := &pgx.Batch{}
		for _, item := range t.Items {
			batch.Queue(insertTradeItemSQL, t.ID, item.UserID, item.ItemID, item.UAID, item.Received())
		}

		results := tx.SendBatch(ctx, batch)
		for range t.Items {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert items of trade %s: %w", t.ID, err)
			}
		}
		return results.Close()
	})
}

func (s *PostgresStore) InsertTrade(ctx context.Context, id uuid.UUID, userA, userB, timestampMs int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.pool.Exec(ctx, insertTradeSQL, id, userA, userB, timestampMs); err != nil {
		return fmt.Errorf("insert trade %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) InsertTradeItem(ctx context.Context, tradeID uuid.UUID, item model.TradeItem) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.pool.Exec(ctx, insertTradeItemSQL, tradeID, item.UserID, item.ItemID, item.UAID, item.Received())
	if err != nil {
		return fmt.Errorf("insert item of trade %s: %w", tradeID, err)
	}
	return nil
}

func (s *PostgresStore) CanUaidBeTraded(ctx context.Context, uaid int64, cooldown time.Duration) (bool, error) {
	var last *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(t.timestamp_ms)
		 FROM trade_items ti
		 JOIN trades t ON t.trade_id = ti.trade_id
		 WHERE ti.uaid = $1`, uaid).Scan(&last)
	if err != nil {
		return false, fmt.Errorf("last trade of uaid %d: %w", uaid, err)
	}
	if last == nil {
		return true, nil
	}
	return cooldownElapsed(*last, s.opts.now(), cooldown), nil
}

func (s *PostgresStore) FindTradesByField(ctx context.Context, field Field, value int64) ([]uuid.UUID, error) {
	if _, err := ParseField(string(field)); err != nil {
		return nil, err
	}

	table := "trades"
	if field.onItems() {
		table = "trade_items"
	}
	// field is whitelisted by ParseField above.
	query := fmt.Sprintf("SELECT DISTINCT trade_id FROM %s WHERE %s = $1", table, field)

	rows, err := s.pool.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("find trades by %s: %w", field, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *PostgresStore) FetchTrade(ctx context.Context, id uuid.UUID) (*model.Trade, error) {
	t := model.Trade{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT user_one_id, user_two_id, timestamp_ms FROM trades WHERE trade_id = $1`, id).
		Scan(&t.UserA, &t.UserB, &t.TimestampMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) FetchTradeItems(ctx context.Context, id uuid.UUID) ([]model.TradeItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, item_id, uaid, received
		 FROM trade_items WHERE trade_id = $1
		 ORDER BY received DESC, uaid`, id)
	if err != nil {
		return nil, fmt.Errorf("get items of trade %s: %w", id, err)
	}
	defer rows.Close()

	var items []model.TradeItem
	for rows.Next() {
		var (
			item     model.TradeItem
			received bool
		)
		if err := rows.Scan(&item.UserID, &item.ItemID, &item.UAID, &received); err != nil {
			return nil, err
		}
		item.Direction = model.DirectionFromReceived(received)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) FetchRecentTrades(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var lim any // LIMIT NULL returns every row
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT trade_id FROM trades ORDER BY timestamp_ms DESC LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
