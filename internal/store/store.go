// Package store defines the persistence contract for inferred trades.
// Implementations include PostgreSQL (production), SQLite (single-node
// deployments), Redis read-through caching over another Store, and
// in-memory (tests and development).
//
// Every implementation serializes writes against each other and commits a
// trade header together with all of its item rows, so a concurrent reader
// never observes a partial trade. Reads are not serialized.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/trademonitor/internal/model"
)

var (
	// ErrNotFound is returned when a trade does not exist.
	ErrNotFound = errors.New("trade not found")

	// ErrUnknownField is returned for an unsupported lookup field.
	ErrUnknownField = errors.New("unknown trade field")
)

// Field is a column trades can be looked up by.
type Field string

const (
	FieldUserOne Field = "user_one_id"
	FieldUserTwo Field = "user_two_id"
	FieldUAID    Field = "uaid"
	FieldItemID  Field = "item_id"
)

// ParseField validates a lookup field name.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldUserOne, FieldUserTwo, FieldUAID, FieldItemID:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
}

// onItems reports whether the field lives on trade_items rather than trades.
func (f Field) onItems() bool {
	return f == FieldUAID || f == FieldItemID
}

// Store is the persistence interface.
type Store interface {
	// --- Writes (serialized) ---

	// SaveTrade atomically persists a trade header and all of its items.
	SaveTrade(ctx context.Context, trade *model.Trade) error

	// InsertTrade persists a trade header on its own.
	InsertTrade(ctx context.Context, id uuid.UUID, userA, userB, timestampMs int64) error

	// InsertTradeItem appends one item row to an existing trade.
	InsertTradeItem(ctx context.Context, tradeID uuid.UUID, item model.TradeItem) error

	// --- Reads ---

	// CanUaidBeTraded reports whether the latest trade involving uaid is
	// older than cooldown. A uaid without trades is always tradeable.
	CanUaidBeTraded(ctx context.Context, uaid int64, cooldown time.Duration) (bool, error)

	// FindTradesByField returns the distinct IDs of trades matching value.
	FindTradesByField(ctx context.Context, field Field, value int64) ([]uuid.UUID, error)

	// FetchTrade returns a trade header without items.
	FetchTrade(ctx context.Context, id uuid.UUID) (*model.Trade, error)

	// FetchTradeItems returns the items of a trade, received items first.
	FetchTradeItems(ctx context.Context, id uuid.UUID) ([]model.TradeItem, error)

	// FetchRecentTrades returns up to limit trade IDs, newest first.
	FetchRecentTrades(ctx context.Context, limit int) ([]uuid.UUID, error)

	// Close releases resources held by the store.
	Close() error
}

// LoadTrade fetches a trade header together with its items.
func LoadTrade(ctx context.Context, s Store, id uuid.UUID) (*model.Trade, error) {
	trade, err := s.FetchTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.FetchTradeItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch items of trade %s: %w", id, err)
	}
	trade.Items = items
	return trade, nil
}

// Option configures a store implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the wall clock used for cooldown checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// cooldownElapsed reports whether lastTradeMs lies outside the cooldown window.
func cooldownElapsed(lastTradeMs int64, now time.Time, cooldown time.Duration) bool {
	return now.UnixMilli()-lastTradeMs > cooldown.Milliseconds()
}

// sortItems orders items received first, then by uaid.
func sortItems(items []model.TradeItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Received(), items[j].Received()
		if ri != rj {
			return ri
		}
		return items[i].UAID < items[j].UAID
	})
}
