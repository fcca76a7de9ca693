// Package httpapi serves inferred trades over a read-only JSON API.
//
// Routes:
//
//	GET /health
//	GET /metrics
//	GET /trades/id/{tradeID}
//	GET /trades/user/{userID}
//	GET /trades/uaid/{uaid}
//	GET /trades/item/{itemID}
//	GET /trades/recent?limit=N
//
// Trade routes are rate limited per client IP.
package httpapi
