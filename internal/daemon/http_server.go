package daemon

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/metrics"
)

// AdminServer serves health, status and metrics for one agent.
type AdminServer struct {
	addr   string
	agent  *Agent
	server *http.Server
	ln     net.Listener
}

// NewAdminServer creates an admin server bound to addr on Start.
func NewAdminServer(addr string, agent *Agent) *AdminServer {
	return &AdminServer{addr: addr, agent: agent}
}

// Handler builds the admin mux.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReadiness)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.HTTPHandler(s.agent.Registry()))
	return mux
}

// Start binds the listener and serves in the background. Binding errors are
// returned immediately.
func (s *AdminServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "admin server failed to bind").
			WithContext("addr", s.addr).
			Build()
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server stopped unexpectedly", logfields.Error(err))
		}
	}()
	slog.Info("Admin server started", logfields.Addr(ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *AdminServer) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *AdminServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	slog.Info("Admin server stopped")
	return nil
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.agent.PerformHealthChecks(r.Context())
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *AdminServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.agent.GetStatus() == StatusRunning {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready: agent is " + string(s.agent.GetStatus())))
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.GenerateStatusData(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Warn("Failed to encode admin response", logfields.Error(err))
	}
}
