// Package api chatlog REST API
//
// @title           chatlog REST API
// @version         1.0.0
// @description     Decodes, archives and searches binary chat-log records.
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fastjson"

	"github.com/ssargent/chatlog/pkg/logger"
)

const (
	defaultMaxBodySize     = 8 << 20
	defaultMetricsInterval = 30 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// Server holds the API server state
type Server struct {
	archive EntryArchive
	config  ServerConfig
	metrics *Metrics
	log     *logger.Logger
	parser  fastjson.ParserPool
}

// NewServer creates a new API server
func NewServer(archive EntryArchive, config ServerConfig, log *logger.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = defaultMetricsInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		archive: archive,
		config:  config,
		metrics: NewMetrics(),
		log:     log,
	}
}

// Metrics returns the server's metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Post("/decode", s.metrics.InstrumentHandler("POST", "/api/v1/decode", s.handleDecode))
		r.Get("/entries", s.metrics.InstrumentHandler("GET", "/api/v1/entries", s.handleListEntries))
		r.Get("/entries/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/entries/{id}", s.handleGetEntry))
		r.Get("/search", s.metrics.InstrumentHandler("GET", "/api/v1/search", s.handleSearch))
		r.Get("/stats", s.metrics.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	SwaggerInfo.Host = s.config.Address

	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	updaterDone := make(chan struct{})
	go func() {
		defer close(updaterDone)
		s.startMetricsUpdater(ctx)
	}()
	// the archive may be closed as soon as we return
	defer func() {
		cancel()
		<-updaterDone
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("starting chatlog REST API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	s.log.Info().Msg("shutting down REST API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startMetricsUpdater refreshes archive gauges until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsInterval)
	defer ticker.Stop()

	for {
		s.refreshArchiveStats()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) refreshArchiveStats() {
	if s.archive == nil {
		return
	}
	stats, err := s.archive.Stats()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read archive stats")
		return
	}
	s.metrics.UpdateArchiveStats(stats)
}
