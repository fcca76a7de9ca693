// Package model defines shared data types used across the trade monitor.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch (the marketplace's native unit)
//   - IDs: int64 for users, items and uaids; uuid.UUID for inferred trade IDs
//   - A uaid identifies one physical copy of a limited item
package model
