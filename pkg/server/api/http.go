// Package api provides HTTP and WebSocket endpoints for published price events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/StrathCole/oracle-monitor/pkg/logging"
	"github.com/StrathCole/oracle-monitor/pkg/metrics"
	"github.com/StrathCole/oracle-monitor/pkg/server/events"
	"github.com/StrathCole/oracle-monitor/pkg/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	// recentPerAsset is the in-memory history kept when no store is configured.
	recentPerAsset = 100
)

// HistoryReader reads persisted events, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, asset string, limit int) ([]events.PriceEvent, error)
}

// Server serves the latest published events over HTTP. It is an events.Sink.
type Server struct {
	addr    string
	server  *http.Server
	logger  *logging.Logger
	history HistoryReader
	started time.Time

	mu     sync.RWMutex
	latest map[string]events.PriceEvent
	recent map[string][]events.PriceEvent
}

// NewServer creates a new HTTP API server. history may be nil, in which case
// /v1/history is served from memory.
func NewServer(addr string, history HistoryReader, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:    addr,
		history: history,
		logger:  logger.With("component", "http"),
		started: time.Now(),
		latest:  make(map[string]events.PriceEvent),
		recent:  make(map[string][]events.PriceEvent),
	}
}

// Name implements events.Sink.
func (s *Server) Name() string {
	return "http"
}

// Publish implements events.Sink by caching the event.
func (s *Server) Publish(_ context.Context, event events.PriceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[event.Asset] = event

	recent := append(s.recent[event.Asset], event)
	if len(recent) > recentPerAsset {
		recent = recent[len(recent)-recentPerAsset:]
	}
	s.recent[event.Asset] = recent
	return nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("/v1/prices", s.instrument("/v1/prices", s.handlePrices))
	mux.HandleFunc("/v1/price", s.instrument("/v1/price", s.handlePrice))
	mux.HandleFunc("/v1/history", s.instrument("/v1/history", s.handleHistory))
	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if r.Method != http.MethodGet {
			rec.Header().Set("Allow", http.MethodGet)
			s.sendError(rec, http.StatusMethodNotAllowed, "method not allowed")
		} else {
			h(rec, r)
		}
		metrics.RecordHTTPRequest(endpoint, strconv.Itoa(rec.status), time.Since(start))
	}
}

type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Assets  map[string]int `json:"assets"`
}

// handleHealth reports liveness and the age in seconds of each asset's last event.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ages := make(map[string]int, len(s.latest))
	for asset, e := range s.latest {
		ages[asset] = int(time.Since(e.Timestamp).Seconds())
	}
	s.mu.RUnlock()

	s.sendJSON(w, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Assets:  ages,
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	result := make([]events.PriceEvent, 0, len(s.latest))
	for _, e := range s.latest {
		result = append(result, e)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	s.sendJSON(w, result)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		s.sendError(w, http.StatusBadRequest, "asset query parameter is required")
		return
	}

	s.mu.RLock()
	event, ok := s.latest[asset]
	s.mu.RUnlock()

	if !ok {
		s.sendError(w, http.StatusNotFound, "no price for "+asset)
		return
	}
	s.sendJSON(w, event)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		s.sendError(w, http.StatusBadRequest, "asset query parameter is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	if s.history != nil {
		result, err := s.history.Recent(r.Context(), asset, limit)
		if err != nil {
			s.logger.Error("Failed to read history", "asset", asset, "error", err)
			s.sendError(w, http.StatusServiceUnavailable, "history unavailable")
			return
		}
		s.sendJSON(w, result)
		return
	}

	s.mu.RLock()
	recent := s.recent[asset]
	n := min(limit, len(recent))
	result := make([]events.PriceEvent, 0, n)
	for i := len(recent) - 1; i >= len(recent)-n; i-- {
		result = append(result, recent[i])
	}
	s.mu.RUnlock()

	s.sendJSON(w, result)
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
