package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rickgao/trademonitor/internal/metrics"
	"github.com/rickgao/trademonitor/internal/model"
	"github.com/rickgao/trademonitor/internal/store"
	"github.com/rickgao/trademonitor/internal/version"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// TradeItemView is one copy within a trade response. ReceivedBy is 1 when
// user one received the copy and 2 when user two did.
type TradeItemView struct {
	UAID       int64 `json:"uaid"`
	ItemID     int64 `json:"item_id"`
	UserID     int64 `json:"user_id"`
	ReceivedBy int   `json:"received_by"`
}

// TradeView is the JSON shape of an inferred trade.
type TradeView struct {
	TradeID   string          `json:"trade_id"`
	UserOneID int64           `json:"user_one_id"`
	UserTwoID int64           `json:"user_two_id"`
	Timestamp int64           `json:"timestamp"`
	Items     []TradeItemView `json:"items"`
}

// NewTradeView converts a stored trade to its response shape.
func NewTradeView(t *model.Trade) TradeView {
	v := TradeView{
		TradeID:   t.ID.String(),
		UserOneID: t.UserA,
		UserTwoID: t.UserB,
		Timestamp: t.TimestampMs,
		Items:     make([]TradeItemView, 0, len(t.Items)),
	}
	for _, item := range t.Items {
		receivedBy := 2
		if item.Received() {
			receivedBy = 1
		}
		v.Items = append(v.Items, TradeItemView{
			UAID:       item.UAID,
			ItemID:     item.ItemID,
			UserID:     item.UserID,
			ReceivedBy: receivedBy,
		})
	}
	return v
}

// Server handles trade queries against a Store.
type Server struct {
	store   store.Store
	limiter *ipLimiter
	logger  *slog.Logger
}

// NewServer creates a Server allowing ratePerMinute trade requests per IP.
func NewServer(st store.Store, ratePerMinute int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		limiter: newIPLimiter(ratePerMinute),
		logger:  logger,
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware(routePattern))

	r.Get("/health", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/trades", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/id/{tradeID}", s.GetTrade)
		r.Get("/user/{userID}", s.GetTradesByUser)
		r.Get("/uaid/{uaid}", s.byField(store.FieldUAID, "uaid"))
		r.Get("/item/{itemID}", s.byField(store.FieldItemID, "itemID"))
		r.Get("/recent", s.GetRecentTrades)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "trademonitor",
		"version": version.Version,
	})
}

// GetTrade handles GET /trades/id/{tradeID}
func (s *Server) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tradeID"))
	if err != nil {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	t, err := store.LoadTrade(r.Context(), s.store, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTradeView(t))
}

// GetTradesByUser handles GET /trades/user/{userID}, matching either side.
func (s *Server) GetTradesByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := int64Param(w, r, "userID")
	if !ok {
		return
	}

	var ids []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, field := range []store.Field{store.FieldUserOne, store.FieldUserTwo} {
		found, err := s.store.FindTradesByField(r.Context(), field, userID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		for _, id := range found {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	s.writeTrades(w, r, ids)
}

func (s *Server) byField(field store.Field, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, ok := int64Param(w, r, param)
		if !ok {
			return
		}
		ids, err := s.store.FindTradesByField(r.Context(), field, value)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeTrades(w, r, ids)
	}
}

// GetRecentTrades handles GET /trades/recent?limit=N
func (s *Server) GetRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			writeError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ids, err := s.store.FetchRecentTrades(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeTrades(w, r, ids)
}

// writeTrades loads and writes trades in id order, skipping ids that
// vanished between lookup and load.
func (s *Server) writeTrades(w http.ResponseWriter, r *http.Request, ids []uuid.UUID) {
	views := make([]TradeView, 0, len(ids))
	for _, id := range ids {
		t, err := store.LoadTrade(r.Context(), s.store, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		views = append(views, NewTradeView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("trade query failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	writeError(w, "internal server error", http.StatusInternalServerError)
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
