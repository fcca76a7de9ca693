package monitor

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/trademonitor/internal/model"
)

// confirmConcurrency bounds concurrent history page fetches per Confirm call.
const confirmConcurrency = 4

// ConfirmDirection reports whether pastOwners (most recent first) is
// consistent with sender having handed the copy to receiver. The sender must
// be listed. A sender at index 0 is accepted outright because the history
// page can lag the ownership change; otherwise the receiver must sit
// immediately before the sender.
func ConfirmDirection(pastOwners []int64, receiver, sender int64) bool {
	senderIdx := slices.Index(pastOwners, sender)
	if senderIdx < 0 {
		return false
	}
	if senderIdx == 0 {
		return true
	}
	receiverIdx := slices.Index(pastOwners, receiver)
	return receiverIdx >= 0 && receiverIdx-senderIdx == -1
}

// resolveOldOwner returns the owner before newOwner in a most-recent-first
// history. When newOwner is not listed yet the head of the list is taken.
func resolveOldOwner(pastOwners []int64, newOwner int64) (int64, bool) {
	idx := slices.Index(pastOwners, newOwner) + 1
	if idx >= len(pastOwners) {
		return 0, false
	}
	old := pastOwners[idx]
	if old == newOwner {
		return 0, false
	}
	return old, true
}

// Confirm filters candidates to those whose past-owner order shows a move
// from sender to receiver. A failed history fetch rejects only that
// candidate.
func (m *Monitor) Confirm(ctx context.Context, candidates []model.Candidate, receiver, sender int64) []model.Candidate {
	accepted := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(confirmConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			owners, err := m.market.PastOwners(ctx, c.UAID)
			if err != nil {
				m.logger.Warn("failed to fetch past owners",
					"uaid", c.UAID,
					"item_id", c.ItemID,
					"err", err,
				)
				return nil
			}
			accepted[i] = ConfirmDirection(owners, receiver, sender)
			return nil
		})
	}
	// Fetch failures are logged and reject only their own candidate.
	_ = g.Wait()

	var confirmed []model.Candidate
	for i, c := range candidates {
		if accepted[i] {
			confirmed = append(confirmed, c)
		}
	}
	return confirmed
}
