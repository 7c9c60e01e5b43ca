// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
	"github.com/bookscrape/catalog-crawler/internal/config"
	"github.com/bookscrape/catalog-crawler/internal/metrics"
)

// Service is the job-orchestration surface the HTTP layer depends on.
type Service interface {
	Trigger(ctx context.Context, requester string) (catalog.Job, error)
	Status(ctx context.Context, jobID string) (catalog.Job, error)
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router  chi.Router
	service Service
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scraping", func(r chi.Router) {
			r.Post("/trigger", s.triggerScraping)
			r.Get("/status/{request_id}", s.getScrapingStatus)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// envelope mirrors the response shape of every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type triggerData struct {
	Status      catalog.JobStatus `json:"status"`
	ID          string            `json:"id"`
	TriggeredBy string            `json:"trigger_by_user"`
}

type statusData struct {
	Status      catalog.JobStatus `json:"status"`
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	TriggeredBy string            `json:"trigger_by_user"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerScraping starts a background crawl and returns immediately with the
// pending job. A crawl already in flight yields a conflict and no job row.
func (s *Server) triggerScraping(w http.ResponseWriter, r *http.Request) {
	requester := r.Header.Get("X-Triggered-By")
	if requester == "" {
		requester = "anonymous"
	}

	job, err := s.service.Trigger(r.Context(), requester)
	if err != nil {
		if errors.Is(err, catalog.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, envelope{
				Success: false,
				Message: "A scraping run is already in progress.",
			})
			return
		}
		s.logger.Error("trigger scraping failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Message: "failed to start scraping",
		})
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Scraping started in background.",
		Data: triggerData{
			Status:      job.Status,
			ID:          job.ID,
			TriggeredBy: job.TriggeredBy,
		},
	})
}

// getScrapingStatus returns the persisted job snapshot for a request id.
func (s *Server) getScrapingStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "request_id")
	job, err := s.service.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, catalog.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{
				Success: false,
				Message: "Scraping id not found.",
			})
			return
		}
		s.logger.Error("status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Message: "failed to fetch scraping status",
		})
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: job.Message,
		Data: statusData{
			Status:      job.Status,
			ID:          job.ID,
			CreatedAt:   job.CreatedAt,
			UpdatedAt:   job.UpdatedAt,
			TriggeredBy: job.TriggeredBy,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeJSON(w, http.StatusInternalServerError, envelope{
						Success: false,
						Message: "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != key {
				writeJSON(w, http.StatusUnauthorized, envelope{
					Success: false,
					Message: "invalid api key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
