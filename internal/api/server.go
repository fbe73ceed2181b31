// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/config"
	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/metrics"
	"github.com/sitesearch/crawler/internal/middleware"
)

// CrawlService is what the HTTP layer needs from the coordinator.
type CrawlService interface {
	StartCrawl(ctx context.Context, crawlID string, req crawler.CrawlRequest) error
	GetStatus(ctx context.Context, crawlID string) (crawler.CrawlStatus, error)
}

// Server wires HTTP handlers to the crawl coordinator.
type Server struct {
	router chi.Router
	crawls CrawlService
	idGen  crawler.IDGenerator
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(crawls CrawlService, idGen crawler.IDGenerator, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		crawls: crawls,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.startCrawl)
			r.Get("/{crawl_id}", s.getCrawlStatus)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	crawlReq := crawler.CrawlRequest{
		URL:           req.URL,
		BaseURL:       req.BaseURL,
		MaxDistance:   valueOrDefault(req.MaxDistance, s.cfg.Crawler.MaxDistanceDefault),
		MaxURLs:       valueOrDefault(req.MaxURLs, s.cfg.Crawler.MaxURLsDefault),
		MaxTimeMillis: valueOrDefault(req.MaxTimeMillis, s.cfg.Crawler.MaxTimeMillisDefault),
	}
	if crawlReq.MaxDistance < 0 || crawlReq.MaxURLs <= 0 || crawlReq.MaxTimeMillis <= 0 {
		writeError(w, http.StatusBadRequest, "crawl limits must be positive")
		return
	}

	crawlID, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate crawl id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := s.crawls.StartCrawl(r.Context(), crawlID, crawlReq); err != nil {
		s.logger.Error("start crawl failed",
			zap.String("crawl_id", crawlID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"crawl_id": crawlID})
}

func (s *Server) getCrawlStatus(w http.ResponseWriter, r *http.Request) {
	crawlID := chi.URLParam(r, "crawl_id")
	status, err := s.crawls.GetStatus(r.Context(), crawlID)
	if err != nil {
		if errors.Is(err, crawler.ErrStatusNotFound) {
			writeError(w, http.StatusNotFound, "crawl not found")
			return
		}
		s.logger.Error("get crawl status failed",
			zap.String("crawl_id", crawlID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type startCrawlRequest struct {
	URL           string `json:"url"`
	BaseURL       string `json:"base_url"`
	MaxDistance   *int   `json:"max_distance"`
	MaxURLs       *int   `json:"max_urls"`
	MaxTimeMillis *int64 `json:"max_time_millis"`
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
