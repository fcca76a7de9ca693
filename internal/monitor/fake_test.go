package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rickgao/trademonitor/internal/model"
)

var errFake = errors.New("fake marketplace failure")

// fakeMarket serves canned marketplace data. Fields are read-only once a
// test starts; call counts are guarded by mu.
type fakeMarket struct {
	catalog    []int64
	catalogErr error
	copies     map[int64]model.ItemCopies
	owners     map[int64][]int64
	current    map[int64]map[int64][]int64
	history    map[int64]map[int64][]model.OwnedAsset
	failUAIDs  map[int64]bool
	failItems  map[int64]bool
	latency    time.Duration // applied to per-uaid and per-user lookups

	mu        sync.Mutex
	ownerHits map[int64]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		copies:    make(map[int64]model.ItemCopies),
		owners:    make(map[int64][]int64),
		current:   make(map[int64]map[int64][]int64),
		history:   make(map[int64]map[int64][]model.OwnedAsset),
		failUAIDs: make(map[int64]bool),
		failItems: make(map[int64]bool),
		ownerHits: make(map[int64]int),
	}
}

func (f *fakeMarket) CatalogItemIDs(context.Context) ([]int64, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakeMarket) ItemCopies(_ context.Context, itemID int64) (model.ItemCopies, error) {
	if f.failItems[itemID] {
		return model.ItemCopies{}, fmt.Errorf("item %d: %w", itemID, errFake)
	}
	c, ok := f.copies[itemID]
	if !ok {
		return model.ItemCopies{ItemID: itemID}, nil
	}
	return c, nil
}

func (f *fakeMarket) wait(ctx context.Context) error {
	if f.latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.latency):
		return nil
	}
}

func (f *fakeMarket) PastOwners(ctx context.Context, uaid int64) ([]int64, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.ownerHits[uaid]++
	f.mu.Unlock()

	if f.failUAIDs[uaid] {
		return nil, fmt.Errorf("uaid %d: %w", uaid, errFake)
	}
	return f.owners[uaid], nil
}

func (f *fakeMarket) PlayerAssets(ctx context.Context, userID int64) (map[int64][]int64, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.current[userID], nil
}

func (f *fakeMarket) PlayerAssetHistory(ctx context.Context, userID int64) (map[int64][]model.OwnedAsset, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.history[userID], nil
}
