package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/config"
	"github.com/JakeFAU/trending-digest/internal/metrics"
	"github.com/JakeFAU/trending-digest/internal/notify"
	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/storage"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

const requestTimeout = 60 * time.Second

// Service is the subset of the application the API drives.
type Service interface {
	Crawl(ctx context.Context) (trending.RunResult, report.Artifacts, error)
	Notify(ctx context.Context, recipient string) (notify.Result, error)
	Summary(ctx context.Context) (trending.Summary, error)
	ReportHTML(ctx context.Context) ([]byte, error)
}

// Server wires HTTP handlers to the application service.
type Server struct {
	router  chi.Router
	service Service
	logger  *zap.Logger
}

// RunResponse describes a finished crawl.
type RunResponse struct {
	RunID         string `json:"run_id"`
	Partial       bool   `json:"partial"`
	TotalRepos    int    `json:"total_repos"`
	Listed        int    `json:"listed"`
	Enriched      int    `json:"enriched"`
	FetchFailures int    `json:"fetch_failures"`
	JSONURI       string `json:"json_uri"`
	HTMLURI       string `json:"html_uri"`
	JSONSHA256    string `json:"json_sha256"`
}

type notifyRequest struct {
	Recipient string `json:"recipient"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{service: service, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey, logger))
		}
		// Crawls are bounded by crawler.run_timeout instead.
		r.Post("/runs", s.triggerRun)
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/summary", s.getSummary)
			r.Get("/report", s.getReport)
			r.Post("/notify", s.sendNotification)
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
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	result, artifacts, err := s.service.Crawl(r.Context())
	switch {
	case errors.Is(err, trending.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, RunResponse{
		RunID:         result.RunID,
		Partial:       result.Partial,
		TotalRepos:    result.Summary.TotalRepos,
		Listed:        result.Listed,
		Enriched:      result.Enriched,
		FetchFailures: result.FetchFailures,
		JSONURI:       artifacts.JSONURI,
		HTMLURI:       artifacts.HTMLURI,
		JSONSHA256:    artifacts.JSONSHA256,
	})
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context())
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ReportHTML(r.Context())
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	w.Header().Set("Content-Type", report.HTMLContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.logger.Warn("report write failed", zap.Error(err))
	}
}

func (s *Server) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	res, err := s.service.Notify(r.Context(), req.Recipient)
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeLoadError(w, err)
	default:
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.writeError(w, http.StatusNotFound, "no report has been generated yet")
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the identifier assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(logger, w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(s.logger, w, status, payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeError(s.logger, w, status, msg)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
