// Package server exposes the search pipeline over HTTP: submit,
// progress stream, result polling, and feedback capture.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/metrics"
	"github.com/licitaradar/radar/internal/pipeline"
	"github.com/licitaradar/radar/internal/progress"
	"github.com/licitaradar/radar/internal/results"
	"github.com/licitaradar/radar/internal/store"
	"github.com/licitaradar/radar/pkg/billing"
)

type ctxKey int

const correlationKey ctxKey = 0

func correlationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey).(string); ok {
		return v
	}
	return ""
}

// Deps are the server's collaborators.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Bus          *progress.Bus
	Results      *results.Store
	Store        store.Store
	Billing      billing.Service
	Metrics      *metrics.Metrics

	// AllowedOrigins restricts CORS; empty means allow any origin.
	AllowedOrigins []string
}

// Server routes HTTP traffic to the pipeline.
type Server struct {
	deps   Deps
	router chi.Router
	logger *zap.Logger

	heartbeat time.Duration
}

func New(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		logger:    zap.L().Named("server"),
		heartbeat: 15 * time.Second,
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(s.correlate)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		r.Method("GET", "/metrics", deps.Metrics.Handler())
	}
	r.Post("/search", s.handleSearch)
	r.Get("/search/{id}/events", s.handleEvents)
	r.Get("/search/{id}/results", s.handleResults)
	r.Post("/feedback", s.handleFeedback)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// correlate tags every request with a correlation id, echoed in the
// response header and in every error body.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		begin := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(begin)),
			zap.String("correlation_id", correlationID(r.Context())))
	})
}
