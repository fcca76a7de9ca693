package monitor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/trademonitor/internal/model"
	"github.com/rickgao/trademonitor/internal/store"
)

const (
	alice int64 = 1 // receives uaid 1001 of item 10
	bob   int64 = 2 // receives uaid 2002 of item 20
)

// swapMarket models alice and bob exchanging one copy each at changedAt.
func swapMarket(changedAt int64) *fakeMarket {
	f := newFakeMarket()
	f.catalog = []int64{20, 10, 30}

	f.copies[10] = model.ItemCopies{ItemID: 10, UAIDs: []int64{1001, 1002}, OwnerIDs: []int64{alice, 7}, UpdatedAt: []int64{changedAt, 0}}
	f.copies[20] = model.ItemCopies{ItemID: 20, UAIDs: []int64{2002}, OwnerIDs: []int64{bob}, UpdatedAt: []int64{changedAt + 5}}
	f.copies[30] = model.ItemCopies{ItemID: 30, UAIDs: []int64{3003}, OwnerIDs: []int64{alice}, UpdatedAt: []int64{0}}

	f.owners[1001] = []int64{alice, bob, 7}
	f.owners[2002] = []int64{bob, alice}

	// Alice's history view has not picked up 1001 yet.
	f.current[alice] = map[int64][]int64{10: {1001}, 30: {3003}}
	f.history[alice] = map[int64][]model.OwnedAsset{
		30: {{UAID: 3003, OwnedSince: changedAt - 5*time.Hour.Milliseconds()}},
	}
	// Bob's history view already lists 2002 with a fresh acquisition time.
	f.current[bob] = map[int64][]int64{20: {2002}}
	f.history[bob] = map[int64][]model.OwnedAsset{
		20: {{UAID: 2002, OwnedSince: changedAt + 5}},
	}
	return f
}

func TestRunCycle_InfersSwap(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }
	changedAt := now.Add(-time.Minute).UnixMilli()
	tradeID := uuid.MustParse("6f1c1c9e-2b8f-4c2b-9d7e-1d2a3b4c5d6e")

	trades := store.NewMemoryStore(store.WithClock(clock))
	cfg := DefaultConfig()
	cfg.Chunks = 1 // sequential, so alice's change is the one that persists

	m := New(cfg, swapMarket(changedAt), trades, nil,
		WithClock(clock),
		WithIDGenerator(func() uuid.UUID { return tradeID }),
	)

	report := m.RunCycle(context.Background())
	if report.Err != nil {
		t.Fatalf("RunCycle err: %v", report.Err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("RunCycle item errors: %v", report.Errors)
	}
	if report.Items != 3 {
		t.Errorf("Items = %d, want 3", report.Items)
	}
	if report.Changes != 2 {
		t.Errorf("Changes = %d, want 2", report.Changes)
	}
	if report.Trades != 1 {
		t.Errorf("Trades = %d, want 1", report.Trades)
	}

	saved := trades.Trades()
	if len(saved) != 1 {
		t.Fatalf("persisted %d trades, want 1", len(saved))
	}
	want := model.Trade{
		ID:          tradeID,
		UserA:       alice,
		UserB:       bob,
		TimestampMs: now.UnixMilli(),
		Items: []model.TradeItem{
			{UserID: alice, ItemID: 10, UAID: 1001, Direction: model.Received},
			{UserID: bob, ItemID: 20, UAID: 2002, Direction: model.Sent},
		},
	}
	if !reflect.DeepEqual(saved[0], want) {
		t.Errorf("trade = %+v, want %+v", saved[0], want)
	}

	if got := m.Watermark(); got != changedAt {
		t.Errorf("Watermark() = %d, want earliest change %d", got, changedAt)
	}
	if report.Watermark != changedAt {
		t.Errorf("report.Watermark = %d, want %d", report.Watermark, changedAt)
	}
}

func TestRunCycle_FreshTradeIDs(t *testing.T) {
	now := time.Now()
	changedAt := now.Add(-time.Minute).UnixMilli()

	trades := store.NewMemoryStore()
	m := New(DefaultConfig(), swapMarket(changedAt), trades, nil)
	m.RunCycle(context.Background())

	saved := trades.Trades()
	if len(saved) != 1 {
		t.Fatalf("persisted %d trades, want 1", len(saved))
	}
	for _, tr := range saved {
		if tr.ID == uuid.Nil {
			t.Error("trade persisted with nil id")
		}
		if tr.TimestampMs < now.UnixMilli() {
			t.Errorf("TimestampMs = %d, want current time >= %d", tr.TimestampMs, now.UnixMilli())
		}
	}
}

// Both changes of one swap land in different chunks and race to persist.
func TestRunCycle_ConcurrentChunksSaveOneTrade(t *testing.T) {
	for i := range 10 {
		changedAt := time.Now().Add(-time.Minute).UnixMilli()
		market := swapMarket(changedAt)
		market.latency = 5 * time.Millisecond

		trades := store.NewMemoryStore()
		m := New(DefaultConfig(), market, trades, nil)

		report := m.RunCycle(context.Background())
		if len(report.Errors) != 0 {
			t.Fatalf("run %d: item errors: %v", i, report.Errors)
		}
		if report.Changes != 2 {
			t.Fatalf("run %d: Changes = %d, want 2", i, report.Changes)
		}

		saved := trades.Trades()
		if len(saved) != 1 || report.Trades != 1 {
			t.Fatalf("run %d: persisted %d trades (report %d), want 1", i, len(saved), report.Trades)
		}

		tr := saved[0]
		users := map[int64]bool{tr.UserA: true, tr.UserB: true}
		if !users[alice] || !users[bob] {
			t.Errorf("run %d: trade between %d and %d, want alice and bob", i, tr.UserA, tr.UserB)
		}
		uaids := map[int64]bool{}
		for _, it := range tr.Items {
			uaids[it.UAID] = true
		}
		if len(tr.Items) != 2 || !uaids[1001] || !uaids[2002] {
			t.Errorf("run %d: items = %+v, want uaids 1001 and 2002", i, tr.Items)
		}
	}
}

func TestPersist_SkipsCopiesAlreadyTraded(t *testing.T) {
	trades := store.NewMemoryStore()
	m := New(DefaultConfig(), newFakeMarket(), trades, nil)
	ctx := context.Background()

	received := []model.Candidate{{ItemID: 10, UAID: 1001}}
	sent := []model.Candidate{{ItemID: 20, UAID: 2002}}

	first, err := m.persist(ctx, alice, bob, received, sent)
	if err != nil || first == nil {
		t.Fatalf("first persist = %v, %v; want a trade", first, err)
	}

	mirror, err := m.persist(ctx, bob, alice, sent, received)
	if err != nil {
		t.Fatalf("mirror persist err: %v", err)
	}
	if mirror != nil {
		t.Errorf("mirror persist saved %+v, want nothing", mirror)
	}

	// One side still fresh is not enough.
	partial, err := m.persist(ctx, alice, bob, []model.Candidate{{ItemID: 40, UAID: 4004}}, sent)
	if err != nil || partial != nil {
		t.Errorf("partial persist = %v, %v; want nil, nil", partial, err)
	}

	if n := len(trades.Trades()); n != 1 {
		t.Errorf("persisted %d trades, want 1", n)
	}
}

func TestRunCycle_NoChangesKeepsWatermark(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	market := swapMarket(now.Add(-20 * time.Hour).UnixMilli())

	m := New(DefaultConfig(), market, store.NewMemoryStore(), nil, WithClock(func() time.Time { return now }))
	before := m.Watermark()

	report := m.RunCycle(context.Background())
	if report.Changes != 0 {
		t.Errorf("Changes = %d, want 0", report.Changes)
	}
	if got := m.Watermark(); got != before {
		t.Errorf("Watermark() = %d, want unchanged %d", got, before)
	}
	if before != now.Add(-10*time.Hour).UnixMilli() {
		t.Errorf("initial watermark = %d, want now-10h", before)
	}
}

func TestRunCycle_CatalogFailureAbortsCycle(t *testing.T) {
	market := swapMarket(time.Now().UnixMilli())
	market.catalogErr = errFake

	trades := store.NewMemoryStore()
	m := New(DefaultConfig(), market, trades, nil)
	before := m.Watermark()

	report := m.RunCycle(context.Background())
	if !errors.Is(report.Err, errFake) {
		t.Errorf("report.Err = %v, want %v", report.Err, errFake)
	}
	if report.Items != 0 {
		t.Errorf("Items = %d, want 0", report.Items)
	}
	if m.Watermark() != before {
		t.Error("watermark moved after a failed catalog fetch")
	}
	if len(trades.Trades()) != 0 {
		t.Error("trade persisted after a failed catalog fetch")
	}
}

func TestRunCycle_ItemFailureIsolated(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }
	changedAt := now.Add(-time.Minute).UnixMilli()

	market := swapMarket(changedAt)
	market.failItems[30] = true
	market.failUAIDs[2002] = true // item 20 fails on its history page

	trades := store.NewMemoryStore(store.WithClock(clock))
	m := New(DefaultConfig(), market, trades, nil, WithClock(clock))

	report := m.RunCycle(context.Background())
	if report.Err != nil {
		t.Fatalf("RunCycle err: %v", report.Err)
	}
	if report.Items != 3 {
		t.Errorf("Items = %d, want 3", report.Items)
	}

	failed := map[int64]bool{}
	for _, e := range report.Errors {
		failed[e.ItemID] = true
		if !errors.Is(e, errFake) {
			t.Errorf("item %d error = %v, want wrapped errFake", e.ItemID, e.Err)
		}
	}
	if !failed[20] || !failed[30] || len(failed) != 2 {
		t.Errorf("failed items = %v, want 20 and 30", failed)
	}

	// Item 10 is still processed; the sent side cannot confirm 2002, so no trade.
	if len(trades.Trades()) != 0 {
		t.Errorf("persisted %d trades, want 0", len(trades.Trades()))
	}
	if got := m.Watermark(); got != changedAt {
		t.Errorf("Watermark() = %d, want %d", got, changedAt)
	}
}

func TestRunCycle_OldOwnerUnresolved(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	changedAt := now.Add(-time.Minute).UnixMilli()

	market := swapMarket(changedAt)
	market.catalog = []int64{10}
	market.owners[1001] = []int64{alice} // no older owner to trade with

	trades := store.NewMemoryStore()
	m := New(DefaultConfig(), market, trades, nil, WithClock(func() time.Time { return now }))

	report := m.RunCycle(context.Background())
	if report.Trades != 0 || len(trades.Trades()) != 0 {
		t.Errorf("trades = %d, want 0", report.Trades)
	}
	if report.Changes != 1 {
		t.Errorf("Changes = %d, want 1", report.Changes)
	}
}

func TestPartition(t *testing.T) {
	ids := func(n int) []int64 {
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(i)
		}
		return out
	}

	tests := []struct {
		name       string
		n          int
		chunks     int
		wantChunks int
		wantFirst  int
	}{
		{"even split", 100, 10, 10, 10},
		{"fewer items than chunks", 3, 10, 3, 1},
		{"remainder gets extra chunk", 25, 10, 13, 2},
		{"single chunk", 7, 1, 1, 7},
		{"empty", 0, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(ids(tt.n), tt.chunks)
			if len(got) != tt.wantChunks {
				t.Fatalf("len(chunks) = %d, want %d", len(got), tt.wantChunks)
			}
			total := 0
			var next int64
			for _, c := range got {
				for _, id := range c {
					if id != next {
						t.Fatalf("chunks not contiguous: got %d, want %d", id, next)
					}
					next++
				}
				total += len(c)
			}
			if total != tt.n {
				t.Errorf("total = %d, want %d", total, tt.n)
			}
			if tt.wantChunks > 0 && len(got[0]) != tt.wantFirst {
				t.Errorf("len(chunks[0]) = %d, want %d", len(got[0]), tt.wantFirst)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	market := newFakeMarket()
	market.catalogErr = errFake

	cfg := DefaultConfig()
	cfg.Pause = 10 * time.Millisecond
	m := New(cfg, market, store.NewMemoryStore(), nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
