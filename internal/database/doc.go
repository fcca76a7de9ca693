// Package database provides PostgreSQL connection pool management and the
// schema for inferred trades.
//
// Tables:
//   - trades: one header row per inferred trade (two users, confirmation time)
//   - trade_items: one row per copy that changed hands, keyed by (trade_id, uaid)
//
// Rows are append-only; nothing in this repository updates or deletes them.
package database
