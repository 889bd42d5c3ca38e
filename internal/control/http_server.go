package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/history"
	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	stopTimeout         = 30 * time.Second
)

// startRequest is the body of POST /v1/optimizer:start
type startRequest struct {
	SettleDelayMs int  `json:"settleDelayMs" validate:"gte=0,lte=60000"`
	Resume        bool `json:"resume"`
}

type HTTPServer struct {
	mux      *http.ServeMux
	runner   *Runner
	validate *validator.Validate
}

func NewHTTPServer(runner *Runner) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		runner:   runner,
		validate: validator.New(),
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/status", s.handleStatus)
	s.mux.HandleFunc("/v1/optimizer:start", s.handleStart)
	s.mux.HandleFunc("/v1/optimizer:stop", s.handleStop)
	s.mux.HandleFunc("/v1/best", s.handleBest)
	s.mux.HandleFunc("/v1/best:apply", s.handleApplyBest)
	s.mux.HandleFunc("/v1/best:reset", s.handleReset)
	s.mux.HandleFunc("/v1/history", s.handleHistory)
	s.mux.HandleFunc("/v1/history/", s.handleHistoryByID)
	if hub := runner.Hub(); hub != nil {
		s.mux.Handle("/v1/events", hub)
	}
	if c := runner.Collector(); c != nil {
		s.mux.Handle("/metrics", c.Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"running":   s.runner.Running(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus handles GET /v1/status
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

// handleStart handles POST /v1/optimizer:start
func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	id, err := s.runner.Start(StartOptions{
		SettleDelay: time.Duration(req.SettleDelayMs) * time.Millisecond,
		Resume:      req.Resume,
	})
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	logger.Info("optimizer start requested", "session_id", id)
	s.writeJSON(w, http.StatusAccepted, map[string]any{"sessionId": id})
}

// handleStop handles POST /v1/optimizer:stop
func (s *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), stopTimeout)
	defer cancel()
	if err := s.runner.Stop(ctx); err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

// handleBest handles GET /v1/best
func (s *HTTPServer) handleBest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Best())
}

// handleApplyBest handles POST /v1/best:apply
func (s *HTTPServer) handleApplyBest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := s.runner.ApplyBest(r.Context())
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"applied": true, "metrics": snap})
}

// handleReset handles POST /v1/best:reset
func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.runner.Reset(r.Context()); err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Best())
}

// handleHistory handles GET /v1/history?limit=N
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		if err := s.validate.Var(n, "gte=1,lte=1000"); err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	entries, err := s.runner.History(r.Context(), limit)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleHistoryByID handles /v1/history/summary, /v1/history/{id} and
// /v1/history/{id}:apply
func (s *HTTPServer) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/history/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "entry ID is required")
		return
	}

	if path == "summary" {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sum, err := s.runner.HistorySummary(r.Context())
		if err != nil {
			s.writeRunnerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sum)
		return
	}

	if strings.HasSuffix(path, ":apply") {
		id := strings.TrimSuffix(path, ":apply")
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		snap, err := s.runner.ApplyHistory(r.Context(), id)
		if err != nil {
			s.writeRunnerError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"applied": true, "id": id, "metrics": snap})
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entry, err := s.runner.HistoryEntry(r.Context(), path)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *HTTPServer) writeRunnerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoBest), errors.Is(err, history.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoLedger):
		s.writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err))
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
