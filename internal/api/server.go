// Package api provides the HTTP conversion service of scanexport. It accepts
// nmap XML reports and answers with JSON or CSV exports, and exposes health
// and Prometheus endpoints.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	apihandlers "github.com/anstrom/scanexport/internal/api/handlers"
	"github.com/anstrom/scanexport/internal/api/middleware"
	"github.com/anstrom/scanexport/internal/auth"
	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/logging"
	"github.com/anstrom/scanexport/internal/metrics"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	readHeaderTimeout     = 10 * time.Second
	idleTimeout           = 60 * time.Second
	maxHeaderBytes        = 1 << 20
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     config.APIConfig
	logger     *logging.Logger
	metrics    metrics.MetricsRegistry
	database   apihandlers.DatabasePinger
	jobs       func() int
	collector  []batch.Option
	keys       middleware.KeyMatcher
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request and batch metrics and serves them on /metrics.
func WithMetrics(registry metrics.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// WithDatabase adds a database check to the health endpoint.
func WithDatabase(database apihandlers.DatabasePinger) Option {
	return func(s *Server) {
		s.database = database
	}
}

// WithScheduledJobs reports the number of scheduled jobs in health checks.
func WithScheduledJobs(count func() int) Option {
	return func(s *Server) {
		s.jobs = count
	}
}

// WithCollectorOptions adds options to the collector of every conversion.
func WithCollectorOptions(opts ...batch.Option) Option {
	return func(s *Server) {
		s.collector = append(s.collector, opts...)
	}
}

// New creates a new API server instance.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg.API,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	if cfg.API.Auth.Enabled {
		s.keys = auth.NewKeySet(cfg.API.Auth.KeyHashes)
	}

	s.collector = append([]batch.Option{
		batch.WithWorkers(cfg.Export.Workers),
		batch.WithDiagnostics(batch.NewLogDiagnostics(s.logger)),
	}, s.collector...)
	if s.metrics != nil {
		s.collector = append(s.collector, batch.WithRecorder(s.metrics))
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           s.handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	health := apihandlers.NewHealthHandler(s.database, s.logger)
	if s.jobs != nil {
		health.WithScheduledJobs(s.jobs)
	}
	convert := apihandlers.NewConvertHandler(s.logger, s.config.MaxParts, s.collector...)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	api.HandleFunc("/liveness", health.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/version", health.Version).Methods(http.MethodGet)

	var convertHandler http.Handler = http.HandlerFunc(convert.Convert)
	if s.keys != nil {
		convertHandler = middleware.Authentication(s.keys, s.logger)(convertHandler)
	}
	api.Handle("/convert/{format}", convertHandler).Methods(http.MethodPost)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// setupMiddleware configures middleware for the API server. Middleware
// registered on the router only runs for matched routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.RequestTimeout(s.config.RequestTimeout))
	s.router.Use(middleware.MaxBodySize(s.config.MaxRequestSize))
}

// handler wraps the router in the handlers that must also see unmatched
// requests.
func (s *Server) handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.CompressHandler(h)
	if s.config.CORS.Enabled {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.CORS.AllowedOrigins),
			handlers.AllowedHeaders([]string{
				"Content-Type",
				"Authorization",
				middleware.APIKeyHeader,
				middleware.RequestIDHeader,
			}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.ExposedHeaders([]string{
				apihandlers.HeaderBatchID,
				apihandlers.HeaderSkippedSources,
				apihandlers.HeaderDecoded,
				middleware.RequestIDHeader,
			}),
		)(h)
	}
	return h
}

// Start serves until ctx is canceled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server", "address", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

// Handler returns the complete HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}
