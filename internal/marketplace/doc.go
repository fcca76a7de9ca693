// Package marketplace provides the collectibles marketplace client.
//
// Data sources:
//   - Catalog page (item_details variable): the universe of limited items
//   - Item page (bc_copies_data variable): per-copy owners and update times
//   - Copy history page (/uaid/<id>): past owners, most recent first
//   - Player page (scanned_player_assets variable): holdings with acquisition times
//   - Player assets API (/players/v1/playerassets/<id>): authoritative current holdings
//
// The Transport interface is the only network dependency. HTTPTransport is
// the production implementation; rate limiting, proxy rotation and retries
// live there and nowhere else.
package marketplace
