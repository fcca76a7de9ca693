package monitor

import "github.com/rickgao/trademonitor/internal/model"

// DetectChanges returns the copies of one item whose last ownership update
// is strictly after watermark. Parallel slices of unequal length are
// truncated to the shortest.
func DetectChanges(copies model.ItemCopies, watermark int64) []model.OwnershipChange {
	var changes []model.OwnershipChange
	for i := 0; i < copies.Len(); i++ {
		if copies.UpdatedAt[i] > watermark {
			changes = append(changes, model.OwnershipChange{
				UAID:      copies.UAIDs[i],
				OwnerID:   copies.OwnerIDs[i],
				ChangedAt: copies.UpdatedAt[i],
			})
		}
	}
	return changes
}
