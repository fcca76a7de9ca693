package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rickgao/trademonitor/internal/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id     TEXT PRIMARY KEY,
		user_one_id  INTEGER NOT NULL,
		user_two_id  INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trade_items (
		trade_id TEXT NOT NULL REFERENCES trades (trade_id),
		user_id  INTEGER NOT NULL,
		item_id  INTEGER NOT NULL,
		uaid     INTEGER NOT NULL,
		received INTEGER NOT NULL,
		PRIMARY KEY (trade_id, uaid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_items_uaid ON trade_items (uaid)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_items_item_id ON trade_items (item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades (timestamp_ms)`,
}

// SQLiteStore implements Store on a local SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	opts options

	writeMu sync.Mutex
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *SQLiteStore) SaveTrade(ctx context.Context, t *model.Trade) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trades (trade_id, user_one_id, user_two_id, timestamp_ms) VALUES (?, ?, ?, ?)`,
		t.ID.String(), t.UserA, t.UserB, t.TimestampMs); err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}

	for _, item := range t.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trade_items (trade_id, user_id, item_id, uaid, received) VALUES (?, ?, ?, ?, ?)`,
			t.ID.String(), item.UserID, item.ItemID, item.UAID, item.Received()); err != nil {
			return fmt.Errorf("insert items of trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) InsertTrade(ctx context.Context, id uuid.UUID, userA, userB, timestampMs int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (trade_id, user_one_id, user_two_id, timestamp_ms) VALUES (?, ?, ?, ?)`,
		id.String(), userA, userB, timestampMs)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) InsertTradeItem(ctx context.Context, tradeID uuid.UUID, item model.TradeItem) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_items (trade_id, user_id, item_id, uaid, received) VALUES (?, ?, ?, ?, ?)`,
		tradeID.String(), item.UserID, item.ItemID, item.UAID, item.Received())
	if err != nil {
		return fmt.Errorf("insert item of trade %s: %w", tradeID, err)
	}
	return nil
}

func (s *SQLiteStore) CanUaidBeTraded(ctx context.Context, uaid int64, cooldown time.Duration) (bool, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(t.timestamp_ms)
		 FROM trade_items ti
		 JOIN trades t ON t.trade_id = ti.trade_id
		 WHERE ti.uaid = ?`, uaid).Scan(&last)
	if err != nil {
		return false, fmt.Errorf("last trade of uaid %d: %w", uaid, err)
	}
	if !last.Valid {
		return true, nil
	}
	return cooldownElapsed(last.Int64, s.opts.now(), cooldown), nil
}

func (s *SQLiteStore) FindTradesByField(ctx context.Context, field Field, value int64) ([]uuid.UUID, error) {
	if _, err := ParseField(string(field)); err != nil {
		return nil, err
	}

	table := "trades"
	if field.onItems() {
		table = "trade_items"
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT trade_id FROM %s WHERE %s = ?", table, field), value)
	if err != nil {
		return nil, fmt.Errorf("find trades by %s: %w", field, err)
	}
	return scanTradeIDs(rows)
}

func (s *SQLiteStore) FetchTrade(ctx context.Context, id uuid.UUID) (*model.Trade, error) {
	t := model.Trade{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_one_id, user_two_id, timestamp_ms FROM trades WHERE trade_id = ?`, id.String()).
		Scan(&t.UserA, &t.UserB, &t.TimestampMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) FetchTradeItems(ctx context.Context, id uuid.UUID) ([]model.TradeItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, item_id, uaid, received
		 FROM trade_items WHERE trade_id = ?
		 ORDER BY received DESC, uaid`, id.String())
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

func (s *SQLiteStore) FetchRecentTrades(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id FROM trades ORDER BY timestamp_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	return scanTradeIDs(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanTradeIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse trade id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
