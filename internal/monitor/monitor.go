package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/trademonitor/internal/metrics"
	"github.com/rickgao/trademonitor/internal/model"
)

// Marketplace is the read side of the marketplace the Monitor observes.
type Marketplace interface {
	CatalogItemIDs(ctx context.Context) ([]int64, error)
	ItemCopies(ctx context.Context, itemID int64) (model.ItemCopies, error)
	PastOwners(ctx context.Context, uaid int64) ([]int64, error)
	PlayerAssets(ctx context.Context, userID int64) (map[int64][]int64, error)
	PlayerAssetHistory(ctx context.Context, userID int64) (map[int64][]model.OwnedAsset, error)
}

// TradeStore is the storage the Monitor needs: cooldown checks and
// atomic trade writes.
type TradeStore interface {
	SaveTrade(ctx context.Context, t *model.Trade) error
	CanUaidBeTraded(ctx context.Context, uaid int64, cooldown time.Duration) (bool, error)
}

// Config holds monitor configuration.
type Config struct {
	Chunks          int           // Target number of concurrent workers per cycle (default: 10)
	Cooldown        time.Duration // Minimum time between trades of one copy (default: 48h)
	CandidateWindow time.Duration // Max distance between acquisition and change time (default: 10m)
	Lookback        time.Duration // Initial watermark offset from startup (default: 10h)
	Pause           time.Duration // Sleep between cycles (default: 0)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Chunks:          10,
		Cooldown:        48 * time.Hour,
		CandidateWindow: 10 * time.Minute,
		Lookback:        10 * time.Hour,
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the wall clock used for the initial watermark and
// trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithIDGenerator overrides how trade ids are allocated.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(m *Monitor) { m.newID = newID }
}

// Monitor infers trades from marketplace ownership changes.
type Monitor struct {
	cfg       Config
	market    Marketplace
	trades    TradeStore
	logger    *slog.Logger
	watermark *Watermark
	now       func() time.Time
	newID     func() uuid.UUID

	// persistMu makes the cooldown re-check and the write of a trade one
	// step across chunk workers.
	persistMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor whose watermark starts Lookback before now.
func New(cfg Config, market Marketplace, trades TradeStore, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Chunks < 1 {
		cfg.Chunks = 1
	}
	m := &Monitor{
		cfg:    cfg,
		market: market,
		trades: trades,
		logger: logger,
		now:    time.Now,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.watermark = NewWatermark(m.now().Add(-cfg.Lookback).UnixMilli())
	metrics.Watermark.Set(float64(m.watermark.Value()))
	return m
}

// Watermark returns the current watermark in ms since epoch.
func (m *Monitor) Watermark() int64 {
	return m.watermark.Value()
}

// Start runs the loop in the background until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Run(ctx)
	}()

	m.logger.Info("trade monitor started",
		"chunks", m.cfg.Chunks,
		"cooldown", m.cfg.Cooldown,
		"watermark", m.watermark.Value(),
	)
	return nil
}

// Stop cancels the loop and waits for the current cycle to wind down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("trade monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes cycles back to back until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m.RunCycle(ctx)

		if m.cfg.Pause > 0 {
			timer := time.NewTimer(m.cfg.Pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// ItemError records an item skipped during a cycle.
type ItemError struct {
	ItemID int64
	Err    error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.ItemID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// CycleReport summarises one pass over the catalog.
type CycleReport struct {
	Items     int         // items examined
	Changes   int         // ownership changes detected
	Trades    int         // trades persisted
	Errors    []ItemError // items skipped
	Err       error       // set when the catalog fetch failed
	Watermark int64       // watermark after the cycle
	Duration  time.Duration
}

// chunkReport is owned by a single worker and merged after the join.
type chunkReport struct {
	items    int
	changes  int
	trades   int
	errors   []ItemError
	observed []int64
}

// RunCycle performs one catalog pass and advances the watermark.
func (m *Monitor) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	watermark := m.watermark.Value()

	ids, err := m.market.CatalogItemIDs(ctx)
	if err != nil {
		m.logger.Error("failed to fetch catalog", "err", err)
		metrics.CyclesTotal.WithLabelValues("universe_error").Inc()
		return CycleReport{Err: fmt.Errorf("fetch catalog: %w", err), Watermark: watermark, Duration: time.Since(start)}
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)

	chunks := Partition(ids, m.cfg.Chunks)
	reports := make([]chunkReport, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = m.processChunk(ctx, chunk, watermark)
		}()
	}
	wg.Wait()

	var (
		report   CycleReport
		observed []int64
	)
	for _, r := range reports {
		report.Items += r.items
		report.Changes += r.changes
		report.Trades += r.trades
		report.Errors = append(report.Errors, r.errors...)
		observed = append(observed, r.observed...)
	}

	if m.watermark.Advance(observed) {
		metrics.Watermark.Set(float64(m.watermark.Value()))
	}
	report.Watermark = m.watermark.Value()
	report.Duration = time.Since(start)

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(report.Duration.Seconds())

	m.logger.Info("inference cycle complete",
		"items", report.Items,
		"chunks", len(chunks),
		"changes", report.Changes,
		"trades", report.Trades,
		"errors", len(report.Errors),
		"watermark", report.Watermark,
		"duration", report.Duration,
	)
	return report
}

// Partition splits ids into contiguous chunks of max(1, len(ids)/n) ids.
func Partition(ids []int64, n int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	size := max(1, len(ids)/max(1, n))
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func (m *Monitor) processChunk(ctx context.Context, ids []int64, watermark int64) chunkReport {
	var r chunkReport
	for _, itemID := range ids {
		if ctx.Err() != nil {
			break
		}
		r.items++
		metrics.ItemsProcessed.Inc()

		if err := m.processItem(ctx, itemID, watermark, &r); err != nil {
			m.logger.Warn("failed to process item",
				"item_id", itemID,
				"err", err,
			)
			metrics.ItemErrors.Inc()
			r.errors = append(r.errors, ItemError{ItemID: itemID, Err: err})
		}
	}
	return r
}

func (m *Monitor) processItem(ctx context.Context, itemID, watermark int64, r *chunkReport) error {
	copies, err := m.market.ItemCopies(ctx, itemID)
	if err != nil {
		return err
	}

	changes := DetectChanges(copies, watermark)
	for _, ch := range changes {
		r.observed = append(r.observed, ch.ChangedAt)
	}
	r.changes += len(changes)
	metrics.OwnershipChanges.Add(float64(len(changes)))

	for _, ch := range changes {
		saved, err := m.processChange(ctx, ch)
		if err != nil {
			return fmt.Errorf("uaid %d: %w", ch.UAID, err)
		}
		if saved {
			r.trades++
		}
	}
	return nil
}

// processChange tries to infer and persist the trade behind one change.
func (m *Monitor) processChange(ctx context.Context, ch model.OwnershipChange) (bool, error) {
	owners, err := m.market.PastOwners(ctx, ch.UAID)
	if err != nil {
		return false, fmt.Errorf("fetch past owners: %w", err)
	}
	oldOwner, ok := resolveOldOwner(owners, ch.OwnerID)
	if !ok {
		return false, nil
	}

	var received, sent []model.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		received, err = m.Candidates(gctx, ch.OwnerID, ch.ChangedAt)
		return err
	})
	g.Go(func() error {
		var err error
		sent, err = m.Candidates(gctx, oldOwner, ch.ChangedAt)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	metrics.Candidates.WithLabelValues("received").Add(float64(len(received)))
	metrics.Candidates.WithLabelValues("sent").Add(float64(len(sent)))

	if len(received) == 0 || len(sent) == 0 {
		return false, nil
	}

	// The old owner's fresh copies are what the new owner gave up.
	received = m.Confirm(ctx, received, ch.OwnerID, oldOwner)
	sent = m.Confirm(ctx, sent, oldOwner, ch.OwnerID)
	metrics.ConfirmedItems.WithLabelValues("received").Add(float64(len(received)))
	metrics.ConfirmedItems.WithLabelValues("sent").Add(float64(len(sent)))

	if len(received) == 0 || len(sent) == 0 {
		return false, nil
	}

	trade, err := m.persist(ctx, ch.OwnerID, oldOwner, received, sent)
	if err != nil || trade == nil {
		return false, err
	}

	m.logger.Info("trade inferred",
		"trade_id", trade.ID,
		"receiver", trade.UserA,
		"sender", trade.UserB,
		"items", len(trade.Items),
		"changed_at", ch.ChangedAt,
	)
	return true, nil
}

// persist saves the trade unless another worker has meanwhile traded its
// copies. Copies now on cooldown are dropped; if either side empties, no
// trade is written and persist returns nil.
func (m *Monitor) persist(ctx context.Context, receiver, sender int64, received, sent []model.Candidate) (*model.Trade, error) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	var err error
	if received, err = m.tradeable(ctx, received); err != nil {
		return nil, err
	}
	if sent, err = m.tradeable(ctx, sent); err != nil {
		return nil, err
	}
	if len(received) == 0 || len(sent) == 0 {
		m.logger.Debug("trade already recorded",
			"receiver", receiver,
			"sender", sender,
		)
		return nil, nil
	}

	trade := m.buildTrade(receiver, sender, received, sent)
	if err := m.trades.SaveTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("save trade: %w", err)
	}
	metrics.TradesPersisted.Inc()
	return trade, nil
}

func (m *Monitor) tradeable(ctx context.Context, candidates []model.Candidate) ([]model.Candidate, error) {
	var kept []model.Candidate
	for _, c := range candidates {
		ok, err := m.trades.CanUaidBeTraded(ctx, c.UAID, m.cfg.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("check cooldown of uaid %d: %w", c.UAID, err)
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// buildTrade assembles a trade between receiver (userA) and sender (userB).
// Each uaid appears once; received copies win over sent ones.
func (m *Monitor) buildTrade(receiver, sender int64, received, sent []model.Candidate) *model.Trade {
	t := &model.Trade{
		ID:          m.newID(),
		UserA:       receiver,
		UserB:       sender,
		TimestampMs: m.now().UnixMilli(),
	}

	seen := make(map[int64]struct{}, len(received)+len(sent))
	add := func(userID int64, c model.Candidate, dir model.Direction) {
		if _, dup := seen[c.UAID]; dup {
			return
		}
		seen[c.UAID] = struct{}{}
		t.Items = append(t.Items, model.TradeItem{UserID: userID, ItemID: c.ItemID, UAID: c.UAID, Direction: dir})
	}
	for _, c := range received {
		add(receiver, c, model.Received)
	}
	for _, c := range sent {
		add(sender, c, model.Sent)
	}
	return t
}
