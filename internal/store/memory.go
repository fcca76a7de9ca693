package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/trademonitor/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	opts options

	mu     sync.RWMutex
	trades map[uuid.UUID]*model.Trade
	order  []uuid.UUID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:   buildOptions(opts),
		trades: make(map[uuid.UUID]*model.Trade),
	}
}

func (s *MemoryStore) SaveTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[t.ID]; exists {
		return fmt.Errorf("trade %s already exists", t.ID)
	}
	seen := make(map[int64]struct{}, len(t.Items))
	for _, item := range t.Items {
		if _, dup := seen[item.UAID]; dup {
			return fmt.Errorf("trade %s: duplicate uaid %d", t.ID, item.UAID)
		}
		seen[item.UAID] = struct{}{}
	}

	// Store a copy to avoid external mutation.
	stored := *t
	stored.Items = append([]model.TradeItem(nil), t.Items...)
	s.trades[t.ID] = &stored
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, id uuid.UUID, userA, userB, timestampMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[id]; exists {
		return fmt.Errorf("trade %s already exists", id)
	}
	s.trades[id] = &model.Trade{ID: id, UserA: userA, UserB: userB, TimestampMs: timestampMs}
	s.order = append(s.order, id)
	return nil
}

func (s *MemoryStore) InsertTradeItem(_ context.Context, tradeID uuid.UUID, item model.TradeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[tradeID]
	if !ok {
		return fmt.Errorf("insert item for trade %s: %w", tradeID, ErrNotFound)
	}
	for _, existing := range t.Items {
		if existing.UAID == item.UAID {
			return fmt.Errorf("trade %s: duplicate uaid %d", tradeID, item.UAID)
		}
	}
	t.Items = append(t.Items, item)
	return nil
}

func (s *MemoryStore) CanUaidBeTraded(_ context.Context, uaid int64, cooldown time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		last  int64
		found bool
	)
	for _, t := range s.trades {
		for _, item := range t.Items {
			if item.UAID == uaid && (!found || t.TimestampMs > last) {
				last, found = t.TimestampMs, true
			}
		}
	}
	if !found {
		return true, nil
	}
	return cooldownElapsed(last, s.opts.now(), cooldown), nil
}

func (s *MemoryStore) FindTradesByField(_ context.Context, field Field, value int64) ([]uuid.UUID, error) {
	if _, err := ParseField(string(field)); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for _, id := range s.order {
		if matches(s.trades[id], field, value) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func matches(t *model.Trade, field Field, value int64) bool {
	switch field {
	case FieldUserOne:
		return t.UserA == value
	case FieldUserTwo:
		return t.UserB == value
	}
	for _, item := range t.Items {
		if (field == FieldUAID && item.UAID == value) || (field == FieldItemID && item.ItemID == value) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) FetchTrade(_ context.Context, id uuid.UUID) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	header := *t
	header.Items = nil
	return &header, nil
}

func (s *MemoryStore) FetchTradeItems(_ context.Context, id uuid.UUID) ([]model.TradeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, nil
	}
	items := append([]model.TradeItem(nil), t.Items...)
	sortItems(items)
	return items, nil
}

func (s *MemoryStore) FetchRecentTrades(_ context.Context, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]*model.Trade, 0, len(s.order))
	for _, id := range s.order {
		trades = append(trades, s.trades[id])
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TimestampMs > trades[j].TimestampMs
	})

	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	ids := make([]uuid.UUID, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
	}
	return ids, nil
}

// Trades returns a copy of every stored trade in insertion order.
func (s *MemoryStore) Trades() []model.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Trade, 0, len(s.order))
	for _, id := range s.order {
		t := *s.trades[id]
		t.Items = append([]model.TradeItem(nil), t.Items...)
		out = append(out, t)
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }
