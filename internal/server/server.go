// Package server exposes the HTTP surface: document upload, chat, evidence
// lookup and health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/fingerprint"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/vectorindex"
)

// Server is the HTTP front for the ingestion pipeline and the chat service.
type Server struct {
	pipeline       *ingest.Pipeline
	chat           *chat.Service
	index          vectorindex.Index
	store          fingerprint.Store
	generatorModel string
	maxUploadBytes int64
	logger         *zap.Logger

	httpServer *http.Server
}

// Config holds server construction settings.
type Config struct {
	Host           string
	Port           int
	MaxUploadMB    int64
	GeneratorModel string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the server and mounts all routes.
func New(cfg Config, pipeline *ingest.Pipeline, chatSvc *chat.Service, index vectorindex.Index, store fingerprint.Store, opts ...Option) *Server {
	maxUpload := cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 32
	}
	s := &Server{
		pipeline:       pipeline,
		chat:           chatSvc,
		index:          index,
		store:          store,
		generatorModel: cfg.GeneratorModel,
		maxUploadBytes: maxUpload << 20,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/documents", s.handleIngest)
	r.Post("/chat", s.handleChat)
	r.Get("/chunks/{doc_id}/{chunk_index}", s.handleGetChunk)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the mounted router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
