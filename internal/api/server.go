// Package api serves the job submission and query HTTP surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/export"
	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/store"
)

const defaultMaxUploadBytes = 32 << 20

// JobService is the job surface the API exposes.
type JobService interface {
	Submit(ctx context.Context, source string, kind model.InputKind) (string, error)
	Status(ctx context.Context, jobID string) (*model.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
	Result(ctx context.Context, jobID string) (*model.JobResult, error)
	Export(ctx context.Context, jobID string) ([]export.Row, error)
}

// Answerer answers free-text questions about a completed job.
type Answerer interface {
	Answer(ctx context.Context, result *model.JobResult, question string) (string, error)
}

// Server holds the API's dependencies.
type Server struct {
	jobs       JobService
	chat       Answerer
	uploadDir  string
	maxUpload  int64
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithChat enables POST /jobs/{id}/chat.
func WithChat(a Answerer) Option {
	return func(s *Server) { s.chat = a }
}

// WithUploads sets where uploaded files are stored and the size cap.
func WithUploads(dir string, maxBytes int64) Option {
	return func(s *Server) {
		s.uploadDir = dir
		if maxBytes > 0 {
			s.maxUpload = maxBytes
		}
	}
}

// WithRegistry registers HTTP metrics on reg and serves /metrics from it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registerer = reg
		s.gatherer = reg
	}
}

// New creates a Server.
func New(jobs JobService, opts ...Option) *Server {
	s := &Server{
		jobs:       jobs,
		uploadDir:  "uploads",
		maxUpload:  defaultMaxUploadBytes,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	mw := metrics.NewMiddleware("provider_api")
	for _, c := range mw.Collectors() {
		if err := s.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				zap.L().Warn("api: metrics registration failed", zap.Error(err))
			}
		}
	}

	r := chi.NewRouter()
	r.Use(
		mw.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		chiMiddleware.RequestID,
		requestLogger,
		chiMiddleware.Recoverer,
	)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.submitJob)
		r.Get("/", s.listJobs)
		r.Get("/{id}", s.getJob)
		r.Get("/{id}/export", s.exportJob)
		r.Post("/{id}/chat", s.chatJob)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		)
	})
}
