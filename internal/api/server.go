package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openagri/fieldclaim/internal/domain"
	"github.com/openagri/fieldclaim/internal/engine"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, orchestrator *engine.Orchestrator, decision domain.DecisionConfig, version string) *Server {
	handler := NewHandler(repo, cache, orchestrator, decision, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no identity required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Farmer routes (X-Farmer-ID required)
	router.Group(func(r chi.Router) {
		r.Use(FarmerMiddleware)

		// Sensor readings
		r.Post("/sensors", handler.CreateSensorReading)
		r.Get("/sensors", handler.ListSensorReadings)
		r.Get("/sensors/{id}", handler.GetSensorReading)

		// Claims
		r.Post("/claims", handler.SubmitClaim)
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
	})

	// Admin routes (X-Actor-Role: admin required)
	router.Route("/admin", func(r chi.Router) {
		r.Use(AdminMiddleware)

		r.Get("/claims", handler.AdminListClaims)
		r.Patch("/claims/{id}/status", handler.AdminOverrideClaim)
		r.Get("/analytics", handler.AdminAnalytics)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
