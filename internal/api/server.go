// Package api provides the HTTP API for running and inspecting simulations.
// GET endpoints describe the catalog, the strategies and archived runs;
// POST /api/v1/simulate runs a simulation and is rate-limited per client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/engine"
	"github.com/talgya/idle-sim/internal/persistence"
	"github.com/talgya/idle-sim/internal/report"
	"github.com/talgya/idle-sim/internal/strategy"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
	maxBodyBytes     = 1 << 16
)

// Server serves simulations over HTTP.
type Server struct {
	Catalog  *catalog.BuildInfo
	Engine   *engine.Engine
	DB       *persistence.DB // Nil disables the /runs endpoints and archiving
	Duration float64         // Used when a request leaves duration unset
	Port     int

	// SimulatePerMinute limits POST /api/v1/simulate per client IP.
	// Zero disables the limit.
	SimulatePerMinute int

	started time.Time
	served  atomic.Int64
}

// SimulateRequest is the body of POST /api/v1/simulate.
type SimulateRequest struct {
	Strategy string   `json:"strategy"`
	Duration *float64 `json:"duration,omitempty"`
	History  bool     `json:"history"`
}

// SimulateResponse is the reply of POST /api/v1/simulate.
type SimulateResponse struct {
	ID      string                `json:"id,omitempty"`
	Summary report.Summary        `json:"summary"`
	History []engine.HistoryEntry `json:"history,omitempty"`
	Series  []report.Point        `json:"series,omitempty"`
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("/api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunDetail)

	simulate := s.handleSimulate
	if s.SimulatePerMinute > 0 {
		limiter := NewRateLimiter(s.SimulatePerMinute, time.Minute)
		simulate = RateLimitMiddleware(limiter, simulate)
	}
	mux.HandleFunc("/api/v1/simulate", simulate)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "archive", s.DB != nil, "simulate_per_minute", s.SimulatePerMinute)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("HTTP API shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	status := map[string]any{
		"name":             "idlesim",
		"items":            len(s.Catalog.Items()),
		"growth":           s.Catalog.Growth(),
		"default_duration": s.Duration,
		"archive":          s.DB != nil,
		"runs_served":      s.served.Load(),
		"uptime_seconds":   int64(time.Since(s.started).Seconds()),
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": strategy.Names(),
		"fixed":      "fixed:<item>",
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"growth": s.Catalog.Growth(),
		"items":  s.Catalog.Snapshot(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req SimulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	fn, err := strategy.Lookup(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	duration := s.Duration
	if req.Duration != nil {
		duration = *req.Duration
	}

	res, err := s.Engine.With("strategy", req.Strategy).Run(s.Catalog, duration, fn)
	if err != nil {
		writeError(w, runErrorStatus(err), err.Error())
		return
	}
	s.served.Add(1)

	resp := SimulateResponse{Summary: report.Summarize(req.Strategy, res)}
	history := res.State.History()
	if req.History {
		resp.History = history
		resp.Series = report.Series(history)
	}

	if s.DB != nil {
		run := persistence.NewRun(req.Strategy, duration, res)
		if err := s.DB.SaveRun(run, history); err != nil {
			slog.Error("archive run failed", "error", err)
		} else {
			resp.ID = run.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// runErrorStatus maps engine errors caused by the request to 400.
func runErrorStatus(err error) int {
	var cerr *engine.ContractError
	var ierr *engine.InvalidCostError
	var rerr *engine.InvalidRateError
	switch {
	case errors.Is(err, catalog.ErrUnknownItem),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.As(err, &cerr),
		errors.As(err, &ierr),
		errors.As(err, &rerr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireArchive(w) {
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.DB.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunDetail serves GET /api/v1/runs/:id.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireArchive(w) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	run, err := s.DB.LoadRun(id)
	if errors.Is(err, persistence.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		slog.Error("load run failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}
	history, err := s.DB.LoadPurchases(id)
	if err != nil {
		slog.Error("load purchases failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load purchases failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"history": history,
		"series":  report.Series(history),
	})
}

func (s *Server) requireArchive(w http.ResponseWriter) bool {
	if s.DB == nil {
		writeError(w, http.StatusNotFound, "run archive disabled")
		return false
	}
	return true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
