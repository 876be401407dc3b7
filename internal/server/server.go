// Package server exposes the answer engines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/metrics"
	"github.com/youthpolicy/policyrag/internal/model"
)

// Engine is the index-backed answer engine
type Engine interface {
	Answerer
	Search(ctx context.Context, query string, k int) ([]model.Match, error)
	Ready(ctx context.Context) (int, error)
}

// Answerer answers one question from up to k sources
type Answerer interface {
	Answer(ctx context.Context, query string, k int, useModel bool) (*model.AnswerBundle, error)
}

// PolicyStore reads stored policy documents
type PolicyStore interface {
	Get(ctx context.Context, id string) (*model.IndexedDocument, error)
}

// Options wires the server. Web and Metrics are optional.
type Options struct {
	Config  model.ServerConfig
	Version string

	Engine Engine
	Web    Answerer
	Store  PolicyStore

	Metrics *metrics.Metrics

	// ModelName is reported by /health; empty means template answers only
	ModelName string

	// DefaultK is used by /answer when the request omits k
	DefaultK int
}

// Server is the HTTP API
type Server struct {
	opts    Options
	handler http.Handler
	logger  *zap.Logger
}

// New builds the server and its routes
func New(opts Options, logger *zap.Logger) *Server {
	s := &Server{opts: opts, logger: logger}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	timeout := time.Duration(s.opts.Config.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/search", s.handleSearch)
	r.Post("/answer", s.handleAnswer)
	if s.opts.Web != nil {
		r.Post("/web/answer", s.handleWebAnswer)
	}
	r.Get("/policy/{id}", s.handlePolicy)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "The requested resource was not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "The requested method is not allowed for this resource", nil)
	})

	return r
}

// observe logs every request and counts it by route pattern
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordRequest(route, status)
			}

			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()

		next.ServeHTTP(ww, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	cfg := s.opts.Config
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadTimeout:       seconds(cfg.ReadTimeout, 30),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      seconds(cfg.WriteTimeout, 60),
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
