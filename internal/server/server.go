// Package server exposes the finder over HTTP: scan submission, polling, a
// live status stream over WebSocket, and the leaderboard.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"relic/internal/auth"
	"relic/internal/blame"
	"relic/internal/config"
	"relic/internal/jobs"
	"relic/internal/relicerr"
	"relic/internal/version"
)

// ScanService is what the HTTP layer needs from the finder.
type ScanService interface {
	Submit(locator string) (string, error)
	Subscribe(id string) (*jobs.Subscription, error)
	Result(id string) (jobs.Result, bool, error)
	Leaderboard() []blame.Winner
	Records(limit int) ([]jobs.Record, error)
}

// Server is the HTTP daemon.
type Server struct {
	cfg       *config.Config
	svc       ScanService
	logger    *slog.Logger
	tokenHash string
	startedAt time.Time
}

// New wires a server in front of the finder. With auth enabled, the stored
// token hash is loaded once at startup; issuing a new token requires a
// restart.
func New(cfg *config.Config, svc ScanService, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		svc:       svc,
		logger:    logger,
		startedAt: time.Now(),
	}

	if cfg.Server.Auth.Enabled {
		hash, err := auth.LoadTokenHash(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("load token hash: %w", err)
		}
		if hash == "" {
			return nil, fmt.Errorf("auth enabled but no token issued; run 'relic token' first")
		}
		s.tokenHash = hash
	}

	return s, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/scans", s.handleScans)
	api.HandleFunc("/api/v1/scans/", s.handleScanByID)
	api.HandleFunc("/api/v1/leaderboard", s.handleLeaderboard)

	mux.Handle("/api/v1/", s.withAuth(api))
	mux.Handle("/ws/scans/", s.withAuth(http.HandlerFunc(s.handleScanWS)))

	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Bind, s.cfg.Server.Port),
		Handler: s.Handler(),
		// No global read/write timeouts: the status WebSocket is long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// withAuth enforces the bearer token when auth is enabled.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Server.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "expected Bearer scheme")
			return
		}
		if !auth.IsValidTokenFormat(token) || !auth.VerifyToken(token, s.tokenHash) {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// APIResponse is the standard response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    APIMeta     `json:"meta"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// submitRequest is the body of POST /api/v1/scans.
type submitRequest struct {
	Locator string `json:"locator"`
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleListRecords(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Locator == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "expected JSON body with a locator field")
		return
	}

	id, err := s.svc.Submit(req.Locator)
	if err != nil {
		s.writeRelicError(w, err)
		return
	}

	s.writeData(w, http.StatusAccepted, map[string]string{
		"jobId":  id,
		"status": "processing",
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.Records(50)
	if err != nil {
		s.writeRelicError(w, err)
		return
	}
	s.writeData(w, http.StatusOK, records)
}

func (s *Server) handleScanByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "no such route")
		return
	}

	result, done, err := s.svc.Result(id)
	if err != nil {
		s.writeRelicError(w, err)
		return
	}

	if !done {
		s.writeData(w, http.StatusOK, map[string]interface{}{
			"jobId":  id,
			"status": "processing",
		})
		return
	}

	status := "complete"
	if result.Error != "" {
		status = "error"
	}
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"jobId":  id,
		"status": status,
		"winner": result.Winner,
		"error":  result.Error,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeData(w, http.StatusOK, s.svc.Leaderboard())
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    APIMeta{Version: version.Version},
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    APIMeta{Version: version.Version},
	})
}

// writeRelicError maps coded errors onto HTTP statuses.
func (s *Server) writeRelicError(w http.ResponseWriter, err error) {
	code := relicerr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case relicerr.InvalidLocator:
		status = http.StatusBadRequest
	case relicerr.JobNotFound:
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: string(code), Message: err.Error()},
		Meta:    APIMeta{Version: version.Version},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
