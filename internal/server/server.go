// Package server provides the HTTP API for reciperag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"reciperag/config"
	"reciperag/internal/logging"
	"reciperag/internal/port"
	"reciperag/internal/usecase"
)

// queryTimeout bounds the search, context and generation routes. Rebuilds
// run for as long as the catalog needs.
const queryTimeout = 2 * time.Minute

// Deps are the components the server exposes.
type Deps struct {
	Generate *usecase.GenerateUseCase
	Index    *usecase.IndexUseCase
	Searcher port.Searcher
	Catalog  port.Catalog
}

// Server is the HTTP server for the recipe API.
type Server struct {
	deps     Deps
	retrieve config.RetrieveConfig
	config   config.ServerConfig
	logger   *zap.Logger
	router   chi.Router
	server   *http.Server
}

// NewServer creates a server and registers its routes.
func NewServer(deps Deps, serverCfg config.ServerConfig, retrieveCfg config.RetrieveConfig, logger *zap.Logger) *Server {
	s := &Server{
		deps:     deps,
		retrieve: retrieveCfg,
		config:   serverCfg,
		logger:   logging.OrNop(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(queryTimeout))
			r.Post("/recipes/generate", s.handleGenerate)
			r.Post("/search", s.handleSearch)
			r.Post("/context", s.handleContext)
		})
		r.Post("/indices/rebuild", s.handleRebuild)
		r.Get("/indices/stats", s.handleStats)
	})
	return r
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request with its status and duration.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request completed",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
