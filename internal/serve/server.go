package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verdantci/evergreen/internal/logger"
)

// webhookTokenHeader carries the shared secret for trigger requests.
const webhookTokenHeader = "X-Webhook-Token"

// Server is the serve-mode HTTP surface: health, status, metrics, and the
// scan trigger webhook.
type Server struct {
	addr      string
	token     string
	scheduler *Scheduler
	metrics   *Metrics
}

// NewServer wires the HTTP surface to a scheduler.
func NewServer(addr, token string, scheduler *Scheduler, metrics *Metrics) *Server {
	return &Server{
		addr:      addr,
		token:     token,
		scheduler: scheduler,
		metrics:   metrics,
	}
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Post("/scan", s.handleScan)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.addr).Msg("webhook server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	report, err := s.scheduler.LastReport()

	status := map[string]any{
		"last_scan": report,
	}
	if err != nil {
		status["last_error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && r.Header.Get(webhookTokenHeader) != s.token {
		logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook rejected, bad token")
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
		return
	}

	if !s.scheduler.Trigger() {
		http.Error(w, "scan already queued", http.StatusTooManyRequests)
		return
	}

	logger.Info().Str("remote", r.RemoteAddr).Msg("scan triggered via webhook")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("scan queued"))
}
