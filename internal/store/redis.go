package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/trademonitor/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Trades are immutable, so trade headers and items are cached until ttl
// expires. SaveTrade writes through the latest trade time of each uaid so
// cooldown checks on hot copies avoid the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	opts    options
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, opts ...Option) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		opts:    buildOptions(opts),
	}
}

// --- Write-through ---

func (s *CachedStore) SaveTrade(ctx context.Context, t *model.Trade) error {
	if err := s.primary.SaveTrade(ctx, t); err != nil {
		return err
	}
	for _, item := range t.Items {
		s.rememberLastTrade(ctx, item.UAID, t.TimestampMs)
	}
	return nil
}

func (s *CachedStore) InsertTrade(ctx context.Context, id uuid.UUID, userA, userB, timestampMs int64) error {
	return s.primary.InsertTrade(ctx, id, userA, userB, timestampMs)
}

func (s *CachedStore) InsertTradeItem(ctx context.Context, tradeID uuid.UUID, item model.TradeItem) error {
	if err := s.primary.InsertTradeItem(ctx, tradeID, item); err != nil {
		return err
	}
	// The item list of this trade changed; the uaid's last trade time is
	// unknown here, so drop it and let the next check hit the primary.
	s.rdb.Del(ctx, tradeItemsKey(tradeID), lastTradeKey(item.UAID))
	return nil
}

// --- Read-through ---

func (s *CachedStore) CanUaidBeTraded(ctx context.Context, uaid int64, cooldown time.Duration) (bool, error) {
	last, err := s.rdb.Get(ctx, lastTradeKey(uaid)).Int64()
	if err == nil {
		return cooldownElapsed(last, s.opts.now(), cooldown), nil
	}
	return s.primary.CanUaidBeTraded(ctx, uaid, cooldown)
}

func (s *CachedStore) FindTradesByField(ctx context.Context, field Field, value int64) ([]uuid.UUID, error) {
	return s.primary.FindTradesByField(ctx, field, value)
}

func (s *CachedStore) FetchTrade(ctx context.Context, id uuid.UUID) (*model.Trade, error) {
	var cached model.Trade
	if s.getJSON(ctx, tradeKey(id), &cached) {
		return &cached, nil
	}

	t, err := s.primary.FetchTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setJSON(ctx, tradeKey(id), t)
	return t, nil
}

func (s *CachedStore) FetchTradeItems(ctx context.Context, id uuid.UUID) ([]model.TradeItem, error) {
	var cached []model.TradeItem
	if s.getJSON(ctx, tradeItemsKey(id), &cached) {
		return cached, nil
	}

	items, err := s.primary.FetchTradeItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		s.setJSON(ctx, tradeItemsKey(id), items)
	}
	return items, nil
}

func (s *CachedStore) FetchRecentTrades(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.primary.FetchRecentTrades(ctx, limit)
}

func (s *CachedStore) Close() error {
	return errors.Join(s.primary.Close(), s.rdb.Close())
}

// --- Helpers ---

func (s *CachedStore) rememberLastTrade(ctx context.Context, uaid, timestampMs int64) {
	s.rdb.Set(ctx, lastTradeKey(uaid), strconv.FormatInt(timestampMs, 10), s.ttl)
}

func (s *CachedStore) getJSON(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) setJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.rdb.Set(ctx, key, data, s.ttl)
}

func tradeKey(id uuid.UUID) string      { return fmt.Sprintf("trademonitor:trade:%s", id) }
func tradeItemsKey(id uuid.UUID) string { return fmt.Sprintf("trademonitor:trade:%s:items", id) }
func lastTradeKey(uaid int64) string    { return fmt.Sprintf("trademonitor:uaid:%d:last_trade", uaid) }
