// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Inference cycle outcomes, durations and the current watermark
//   - Per-item processing errors and detected ownership changes
//   - Candidate and confirmation counts per trade side
//   - Persisted trades and marketplace request outcomes
//   - Query API request rates and latencies
package metrics
