// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api assembles the Lectern HTTP surface.

Routes:

	GET  /health                            liveness
	GET  /ready                             readiness of postgres, redis, storage
	GET  /serve?resourceId=&token=          document bytes, full or ranged
	POST /api/v1/documents/{id}/tokens      mint a capability token

/serve sits outside /api/v1 so that long streams escape the JSON request
deadline.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/lectern/internal/document"
	"github.com/taibuivan/lectern/internal/platform/constants"
	"github.com/taibuivan/lectern/internal/platform/middleware"
)

// # Server Definitions

// Server owns the router and the underlying [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// ServerConfig is the part of the application config the server needs.
type ServerConfig interface {
	middleware.AppConfig
	Port() string
}

// # Handler Registry

// Handlers are the endpoints mounted by [NewServer].
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	Documents *document.Handler
}

// # Server Initialization

// NewServer builds the router. ctx bounds background work such as the rate
// limiter's sweeper.
func NewServer(ctx context.Context, cfg ServerConfig, log *slog.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst)

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(limiter.Handler)
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// All methods reach Serve so it can answer 405 with an Allow header.
	r.HandleFunc(document.ServePath, h.Documents.Serve)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(chimw.Timeout(constants.GlobalRequestTimeout))
		api.Route("/documents", h.Documents.RegisterRoutes)
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port(),
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, including open document streams, for
// at most timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
