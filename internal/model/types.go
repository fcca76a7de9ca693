package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Marketplace Types
// -----------------------------------------------------------------------------

// ItemCopies holds the per-copy ownership snapshot of one limited item.
// The three slices are parallel: index i describes a single uaid.
type ItemCopies struct {
	ItemID    int64
	UAIDs     []int64 // Copy identifiers
	OwnerIDs  []int64 // Current owner of each copy
	UpdatedAt []int64 // Last ownership update (ms since epoch)
}

// Len returns the number of complete entries across the parallel slices.
func (c ItemCopies) Len() int {
	n := len(c.UAIDs)
	if len(c.OwnerIDs) < n {
		n = len(c.OwnerIDs)
	}
	if len(c.UpdatedAt) < n {
		n = len(c.UpdatedAt)
	}
	return n
}

// OwnershipChange is a copy whose owner changed after the current watermark.
type OwnershipChange struct {
	UAID      int64
	OwnerID   int64 // New owner
	ChangedAt int64 // ms since epoch
}

// OwnedAsset is one entry of a user's historical holdings view.
type OwnedAsset struct {
	UAID       int64
	Serial     *int64 // nil for unserialized copies
	CreatedAt  int64  // ms since epoch
	OwnedSince int64  // ms since epoch
}

// Candidate is an unconfirmed hypothesis that a user received or sent a copy.
type Candidate struct {
	ItemID int64
	UAID   int64
}

// -----------------------------------------------------------------------------
// Trade Types
// -----------------------------------------------------------------------------

// Direction records which way a copy moved within a trade.
type Direction int

const (
	Received Direction = iota + 1
	Sent
)

// String returns the lowercase direction name.
func (d Direction) String() string {
	switch d {
	case Received:
		return "received"
	case Sent:
		return "sent"
	default:
		return "unknown"
	}
}

// DirectionFromReceived maps the stored received flag to a Direction.
func DirectionFromReceived(received bool) Direction {
	if received {
		return Received
	}
	return Sent
}

// Trade is an inferred peer-to-peer trade. Immutable once persisted.
type Trade struct {
	ID          uuid.UUID
	UserA       int64 // Receiver side (new owner of the detected copy)
	UserB       int64 // Sender side (previous owner)
	TimestampMs int64 // Wall-clock time the trade was confirmed
	Items       []TradeItem
}

// TradeItem is one copy that changed hands within a trade.
type TradeItem struct {
	UserID    int64 // User holding the copy after the trade
	ItemID    int64
	UAID      int64
	Direction Direction // Relative to Trade.UserA
}

// Received reports whether Trade.UserA received the copy.
func (i TradeItem) Received() bool {
	return i.Direction == Received
}
