// Package monitor implements the trade inference loop.
//
// Each cycle the Monitor:
//   - Fetches the catalog of limited items and splits it into contiguous chunks
//   - Runs one worker per chunk, detecting copies whose owner changed after
//     the watermark
//   - Resolves the previous owner of each changed copy from its history page
//   - Proposes candidate copies for both users around the change time and
//     confirms each one against past-owner order
//   - Persists a trade when both sides have at least one confirmed copy
//   - Advances the watermark to the earliest change observed in the cycle
//
// Failures are isolated per item; only a failed catalog fetch aborts a cycle.
package monitor
