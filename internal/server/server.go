// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the assistant over a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ServiceName is reported by / and /health.
const ServiceName = "research-assistant"

// Server routes API requests to an Assistant.
type Server struct {
	a       *assistant.Assistant
	cfg     types.Config
	version string
	logger  *zap.Logger
	metrics *httpMetrics
	limiter *ipLimiter
	router  *mux.Router
	handler http.Handler
}

// Options configure a Server. A nil Gatherer serves the default Prometheus
// registry on /metrics.
type Options struct {
	Version    string
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// New builds the router and middleware chain.
func New(a *assistant.Assistant, cfg types.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		a:       a,
		cfg:     cfg,
		version: opts.Version,
		logger:  opts.Logger,
		metrics: newHTTPMetrics(opts.Registerer),
		router:  mux.NewRouter(),
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.routes(s.router)
	if v := strings.Trim(cfg.API.APIVersion, "/"); v != "" {
		s.routes(s.router.PathPrefix("/api/" + v).Subrouter())
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Outermost first. The chain wraps the router so preflight requests
	// and unmatched paths pass through it too.
	var h http.Handler = s.router
	h = s.limitBody(h)
	if cfg.API.AuthEnabled {
		h = s.authenticate(h)
	}
	if cfg.API.RateLimitEnabled {
		s.limiter = newIPLimiter(cfg.API.RateLimitRequests, cfg.API.RateLimitWindow)
		h = s.rateLimit(h)
	}
	if cfg.API.CORSEnabled {
		h = s.cors(h)
	}
	h = s.observe(h)
	s.handler = s.recoverPanics(h)
	return s
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/papers", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/papers/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/papers/fetch", s.handleFetch).Methods(http.MethodPost)
	r.HandleFunc("/papers/ask", s.handleAsk).Methods(http.MethodPost)
	r.HandleFunc("/papers/summarize", s.handleSummarize).Methods(http.MethodPost)
	r.HandleFunc("/papers/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/papers/compare", s.handleCompare).Methods(http.MethodPost)
	r.HandleFunc("/papers/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/papers/{id}", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/papers/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/papers/{id}/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/papers/{id}/export", s.handleExport).Methods(http.MethodGet)
}

// Handler returns the API with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.API.Addr(),
		Handler:           s.handler,
		ReadTimeout:       s.cfg.API.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.API.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", zap.String("addr", srv.Addr), zap.String("version", s.version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serving API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.API.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return <-errc
}
