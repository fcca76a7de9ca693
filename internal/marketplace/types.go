package marketplace

import (
	"encoding/json"
	"strconv"

	"github.com/rickgao/trademonitor/internal/model"
)

// bcCopiesData mirrors the item page's bc_copies_data variable.
// Only the fields used for change detection are decoded.
type bcCopiesData struct {
	NumCopies int64     `json:"num_bc_copies"`
	OwnerIDs  []flexInt `json:"owner_ids"`
	UAIDs     []flexInt `json:"bc_uaids"`
	Updated   []int64   `json:"bc_updated"`
}

func (d bcCopiesData) toModel(itemID int64) model.ItemCopies {
	out := model.ItemCopies{
		ItemID:    itemID,
		UAIDs:     make([]int64, len(d.UAIDs)),
		OwnerIDs:  make([]int64, len(d.OwnerIDs)),
		UpdatedAt: d.Updated,
	}
	for i, u := range d.UAIDs {
		out.UAIDs[i] = int64(u)
	}
	for i, o := range d.OwnerIDs {
		out.OwnerIDs[i] = int64(o)
	}
	return out
}

// playerAssetsResponse mirrors the player assets API payload.
type playerAssetsResponse struct {
	Success          bool               `json:"success"`
	PlayerTerminated bool               `json:"playerTerminated"`
	PlayerID         int64              `json:"playerId"`
	PlayerAssets     map[string][]int64 `json:"playerAssets"`
}

// flexInt decodes integers the marketplace sometimes encodes as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// ownedAssetFromTuple converts a scanned asset tuple
// [uaid, serial|null, created, owned_since].
func ownedAssetFromTuple(t []*int64) (model.OwnedAsset, bool) {
	if len(t) < 4 || t[0] == nil || t[3] == nil {
		return model.OwnedAsset{}, false
	}
	a := model.OwnedAsset{
		UAID:       *t[0],
		Serial:     t[1],
		OwnedSince: *t[3],
	}
	if t[2] != nil {
		a.CreatedAt = *t[2]
	}
	return a, true
}
