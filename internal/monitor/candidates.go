package monitor

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/trademonitor/internal/model"
)

// Candidates proposes copies userID may have just acquired around the
// event time at (ms since epoch). Two holdings views are compared:
//
//   - copies in the current listing that the history view does not know
//     yet are presumed just acquired
//   - copies in the history view acquired within CandidateWindow of at
//     (inclusive on both ends)
//
// Copies still on trade cooldown are excluded. Duplicates are possible.
func (m *Monitor) Candidates(ctx context.Context, userID, at int64) ([]model.Candidate, error) {
	var (
		current map[int64][]int64
		history map[int64][]model.OwnedAsset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = m.market.PlayerAssets(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = m.market.PlayerAssetHistory(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch holdings for user %d: %w", userID, err)
	}

	var candidates []model.Candidate
	add := func(itemID, uaid int64) error {
		ok, err := m.trades.CanUaidBeTraded(ctx, uaid, m.cfg.Cooldown)
		if err != nil {
			return fmt.Errorf("check cooldown for uaid %d: %w", uaid, err)
		}
		if ok {
			candidates = append(candidates, model.Candidate{ItemID: itemID, UAID: uaid})
		}
		return nil
	}

	for _, itemID := range slices.Sorted(maps.Keys(current)) {
		known := make(map[int64]struct{}, len(history[itemID]))
		for _, asset := range history[itemID] {
			known[asset.UAID] = struct{}{}
		}
		for _, uaid := range current[itemID] {
			if _, ok := known[uaid]; ok {
				continue
			}
			if err := add(itemID, uaid); err != nil {
				return nil, err
			}
		}
	}

	window := m.cfg.CandidateWindow.Milliseconds()
	for _, itemID := range slices.Sorted(maps.Keys(history)) {
		for _, asset := range history[itemID] {
			if !withinWindow(asset.OwnedSince, at, window) {
				continue
			}
			if err := add(itemID, asset.UAID); err != nil {
				return nil, err
			}
		}
	}

	return candidates, nil
}

func withinWindow(ts, at, window int64) bool {
	d := ts - at
	if d < 0 {
		d = -d
	}
	return d <= window
}
