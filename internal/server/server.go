// Package server provides the HTTP API for kensaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/store"
	"go.uber.org/zap"
)

// Server is the HTTP server for the kensaku API.
type Server struct {
	engine *search.Engine
	store  *store.Store
	loader *ingest.Loader
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies. loader may be nil
// when refresh support is not wanted (e.g. some tests).
func NewServer(
	engine *search.Engine,
	st *store.Store,
	loader *ingest.Loader,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine: engine,
		store:  st,
		loader: loader,
		config: cfg,
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Post("/refresh", s.handleRefresh)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
