// ABOUTME: HTTP server wiring for the control plane boundary
// ABOUTME: Builds the route mux and runs the listener with graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hallpass-dev/hallpass/internal/approval"
	"github.com/hallpass-dev/hallpass/internal/auth"
	"github.com/hallpass-dev/hallpass/internal/config"
	"github.com/hallpass-dev/hallpass/internal/registry"
	"github.com/hallpass-dev/hallpass/internal/tunnel"
)

// Server exposes every boundary operation over one HTTP listener. All
// collaborators are injected; the server holds no global state.
type Server struct {
	cfg      *config.Config
	store    *registry.Store
	authGW   *auth.Gateway
	workflow *approval.Workflow
	tunnel   *tunnel.Supervisor
	logger   *slog.Logger

	httpServer *http.Server
}

// New creates the boundary server over its collaborators.
func New(cfg *config.Config, store *registry.Store, authGW *auth.Gateway, workflow *approval.Workflow, tun *tunnel.Supervisor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		authGW:   authGW,
		workflow: workflow,
		tunnel:   tun,
		logger:   logger.With("component", "gateway"),
	}
}

// Handler builds the route mux. Exposed separately from Run so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	bearer := auth.Middleware(s.authGW)

	// Pairing flows (the pairing code, or loopback origin, is the credential).
	mux.HandleFunc("POST /api/auth/local", s.handleLocalAuth)
	mux.HandleFunc("POST /api/auth/verify", s.handleVerify)
	mux.HandleFunc("POST /api/auth/request", s.handleRequestAccess)
	mux.HandleFunc("GET /api/auth/status/{id}", s.handleCheckStatus)

	// Authenticated device operations.
	mux.Handle("GET /api/auth/validate", bearer(http.HandlerFunc(s.handleValidate)))
	mux.Handle("POST /api/auth/logout", bearer(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/code", bearer(http.HandlerFunc(s.handleGetCode)))
	mux.Handle("GET /api/devices", bearer(http.HandlerFunc(s.handleListDevices)))
	mux.Handle("POST /api/devices/{id}/rename", bearer(http.HandlerFunc(s.handleRenameDevice)))
	mux.Handle("DELETE /api/devices/{id}", bearer(http.HandlerFunc(s.handleRevokeDevice)))
	mux.Handle("POST /api/devices/revoke-others", bearer(http.HandlerFunc(s.handleRevokeOthers)))

	// Operator approval workflow.
	mux.Handle("GET /api/requests", bearer(http.HandlerFunc(s.handleListRequests)))
	mux.Handle("POST /api/requests/{id}/approve", bearer(http.HandlerFunc(s.handleApproveRequest)))
	mux.Handle("POST /api/requests/{id}/deny", bearer(http.HandlerFunc(s.handleDenyRequest)))

	// Tunnel control, driven by the trusted local UI.
	mux.HandleFunc("POST /api/tunnel/start", s.handleTunnelStart)
	mux.HandleFunc("POST /api/tunnel/stop", s.handleTunnelStop)
	mux.HandleFunc("GET /api/tunnel/status", s.handleTunnelStatus)

	mux.HandleFunc("GET /api/health", s.handleHealth)

	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errCh:
	}

	s.tunnel.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return fmt.Errorf("http server: %w", serverErr)
	}
	return shutdownErr
}
