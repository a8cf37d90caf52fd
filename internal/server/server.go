// Package server exposes the claim store over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimstore/internal/logger"
	"github.com/ppiankov/claimstore/internal/metrics"
	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/query"
	"github.com/ppiankov/claimstore/internal/store"
)

// Repository is the write side the server needs
type Repository interface {
	Ingest(ctx context.Context, c *model.Candidate) (*store.IngestResult, error)
	Get(id string) (*model.Entry, error)
	Attach(ctx context.Context, from model.ClaimRef, kind model.RelationKind, to model.ClaimRef) (*store.AttachResult, error)
	Rebuild(ctx context.Context) (*store.RebuildReport, error)
	Verify(ctx context.Context) error
}

// Idle clients are forgotten by the limiter after this long
const clientIdleTimeout = 10 * time.Minute

// Server serves the claim store API
type Server struct {
	router  chi.Router
	repo    Repository
	engine  *query.Engine
	limiter *Limiter
	cfg     model.ServerConfig
	log     *logger.Logger
}

// New builds the router
func New(repo Repository, engine *query.Engine, cfg model.ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		router:  chi.NewRouter(),
		repo:    repo,
		engine:  engine,
		limiter: NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		cfg:     cfg,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleFind)
			r.Post("/", s.handleIngest)
			r.Get("/{id}", s.handleGetEntry)
			r.Get("/{id}/relationships", s.handleRelationships)
		})
		r.Post("/relationships", s.handleAttach)
		r.Get("/evolution", s.handleEvolution)
		r.Get("/topics", s.handleTopics)
		r.Get("/speakers", s.handleSpeakers)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/verify", s.handleVerify)
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(clientIdleTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := s.limiter.Sweep(clientIdleTimeout); n > 0 {
					s.log.Debug("rate limiter swept idle clients", "removed", n)
				}
			}
		}
	})
	return g.Wait()
}

// rateLimit rejects callers over their token bucket with 429
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics under the matched route pattern and
// logs each request
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordHTTPRequest(route, strconv.Itoa(status))
		s.log.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
