// Package http wires the gateway's HTTP surface: authentication,
// include expansion and the registry-driven reverse proxy.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/jsonapi"
	"github.com/your-org/edge-gateway/internal/route"
	"github.com/your-org/edge-gateway/internal/service/auth"
	"github.com/your-org/edge-gateway/internal/service/cache"
	"github.com/your-org/edge-gateway/pkg/logger"
	"github.com/your-org/edge-gateway/pkg/resilience/ratelimit"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer  *http.Server
	cfg         config.ServerConfig
	rateLimiter *ratelimit.Limiter
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithRateLimiter enables rate limiting on the server.
func WithRateLimiter(limiter *ratelimit.Limiter) ServerOption {
	return func(s *Server) {
		s.rateLimiter = limiter
	}
}

// NewServer assembles the router and middleware stack.
func NewServer(
	cfg *config.Config,
	authService *auth.Service,
	registry *route.Registry,
	cacheService *cache.Service,
	version string,
	opts ...ServerOption,
) *Server {
	server := &Server{cfg: cfg.Server}
	for _, opt := range opts {
		opt(server)
	}

	handler := NewHandler(cacheService, registry, version)
	authMW := newAuthMiddleware(authService, cfg.Auth.PublicPaths)
	includeMW := newIncludeMiddleware(jsonapi.NewResolver(cacheService), cfg.Include)
	proxy := NewReverseProxy(registry, cfg.Backend)

	router := chi.NewRouter()

	// Middleware stack (order matters)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(logger.CorrelationIDMiddleware)

	if server.rateLimiter != nil {
		router.Use(server.rateLimiter.Middleware())
		logger.Info("rate limiter middleware enabled")
	}

	router.Use(logger.RequestLogger)
	router.Use(metricsMiddleware)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	router.Handle("/api/*", authMW.Handler(includeMW.Handler(proxy)))

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// Start begins serving. It blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	logger.Info("http server starting", logger.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
