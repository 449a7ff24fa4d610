package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/strategos/pkg/usecase"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
)

// Server routes the orchestration API. All endpoints speak JSON.
type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
}

type Options func(*Server)

// New creates the HTTP server for the orchestration API
func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyzeHandler)
		r.Post("/select", s.selectHandler)
		r.Post("/orchestrate", s.orchestrateHandler)
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.activeWorkflowsHandler)
			r.Get("/history", s.workflowHistoryHandler)
			r.Get("/{workflowID}", s.workflowStatusHandler)
			r.Get("/{workflowID}/messages", s.workflowMessagesHandler)
		})
		r.Get("/metrics", s.metricsHandler)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
