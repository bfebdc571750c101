// Package server exposes a read-only HTTP status API over the project
// queue.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/queue"
)

// Server serves queue status over HTTP. All endpoints are read-only.
type Server struct {
	bind   string
	store  *queue.Store
	logger *slog.Logger
	router *chi.Mux

	listener net.Listener
	server   *http.Server
}

// New constructs a status server bound per the configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("server requires config and store")
	}
	bind := strings.TrimSpace(cfg.Paths.ServerBind)
	if bind == "" {
		return nil, errors.New("server bind address not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		bind:   bind,
		store:  store,
		logger: logger.With(logging.String("component", "server")),
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/api/queue", s.handleQueueList)
	r.Get("/api/queue/{id}", s.handleQueueItem)
}

// Handler returns the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and shuts down when the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
