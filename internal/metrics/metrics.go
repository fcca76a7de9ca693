package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts inference cycles by result (ok, universe_error).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trademonitor_cycles_total",
		Help: "Total number of inference cycles",
	}, []string{"result"})

	// CycleDuration tracks wall time of a full inference cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trademonitor_cycle_duration_seconds",
		Help:    "Inference cycle duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// Watermark is the current check-after time in ms since epoch.
	Watermark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trademonitor_watermark_ms",
		Help: "Ownership changes at or before this time are considered processed",
	})

	// ItemsProcessed counts items whose ownership snapshot was examined.
	ItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trademonitor_items_processed_total",
		Help: "Items examined for ownership changes",
	})

	// ItemErrors counts items skipped because of a failure.
	ItemErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trademonitor_item_errors_total",
		Help: "Items skipped due to transport, parse or storage failures",
	})

	// OwnershipChanges counts detected ownership changes.
	OwnershipChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trademonitor_ownership_changes_total",
		Help: "Copies whose owner changed after the watermark",
	})

	// Candidates counts generated candidate events by side (received, sent).
	Candidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trademonitor_candidates_total",
		Help: "Candidate events generated",
	}, []string{"side"})

	// ConfirmedItems counts candidates that passed past-owner confirmation.
	ConfirmedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trademonitor_confirmed_items_total",
		Help: "Candidate events confirmed by past-owner order",
	}, []string{"side"})

	// TradesPersisted counts inferred trades written to storage.
	TradesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trademonitor_trades_persisted_total",
		Help: "Inferred trades committed to storage",
	})

	// MarketplaceRequests counts marketplace fetches by endpoint and outcome.
	MarketplaceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trademonitor_marketplace_requests_total",
		Help: "Marketplace requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// HTTPRequestsTotal counts query API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trademonitor_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks query API request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trademonitor_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// routePattern maps a request to a low-cardinality path label.
func Middleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if routePattern != nil {
				if p := routePattern(r); p != "" {
					path = p
				}
			}
			HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
