// Package httpapi serves the observability and control surface: registry
// and position snapshots, order status lookups, buy submission, the journal,
// and a WebSocket feed of journal activity.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/broker"
	"sentinel/internal/engine"
	"sentinel/internal/journal"
)

// JournalStore is the read side of the journal, served over HTTP.
type JournalStore interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	BySymbol(ctx context.Context, symbol string, limit int) ([]journal.Entry, error)
}

// Server exposes the engine over HTTP.
type Server struct {
	engine *engine.Engine
	store  JournalStore // nil when durable journaling is disabled
	hub    *Hub
	log    *slog.Logger
}

// NewServer creates a server over the given engine. store may be nil; hub
// may be nil to disable the WebSocket feed.
func NewServer(eng *engine.Engine, store JournalStore, hub *Hub, log *slog.Logger) *Server {
	return &Server{
		engine: eng,
		store:  store,
		hub:    hub,
		log:    log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/registry", s.handleRegistry)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/orders/{id}/status", s.handleOrderStatus)
	mux.HandleFunc("POST /api/orders/buy", s.handleSubmitBuy)
	mux.HandleFunc("GET /api/journal", s.handleJournal)
	if s.hub != nil {
		mux.HandleFunc("GET /api/ws", s.hub.HandleWebSocket)
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http api listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Broker: s.engine.BrokerName()})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Snapshot())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, PositionsResponse{Positions: s.engine.Positions()})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}

	status, err := s.engine.OrderStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, broker.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("order %s not found", id))
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, OrderStatusResponse{OrderID: id, Status: string(status)})
}

func (s *Server) handleSubmitBuy(w http.ResponseWriter, r *http.Request) {
	var req SubmitBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "qty must be positive")
		return
	}
	if req.LimitPrice < 0 {
		writeError(w, http.StatusBadRequest, "limit_price must not be negative")
		return
	}

	order, err := s.engine.SubmitBuy(r.Context(), req.Symbol, req.Qty, req.LimitPrice)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, order)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		limit = n
	}

	var (
		entries []journal.Entry
		err     error
	)
	if symbol := strings.ToUpper(r.URL.Query().Get("symbol")); symbol != "" {
		entries, err = s.store.BySymbol(r.Context(), symbol, limit)
	} else {
		entries, err = s.store.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, JournalResponse{Entries: entries})
}
