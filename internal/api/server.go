package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/campus-gateway/internal/config"
	"github.com/terra-clan/campus-gateway/internal/health"
	"github.com/terra-clan/campus-gateway/internal/metrics"
	"github.com/terra-clan/campus-gateway/internal/notify"
	"github.com/terra-clan/campus-gateway/internal/session"
)

// Subscriber hands out notification subscriptions
type Subscriber interface {
	Subscribe(sessionID string) *notify.Subscription
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	sessions       session.Manager
	notifications  Subscriber
	health         *health.Registry
	metrics        *metrics.Metrics
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	sessions session.Manager,
	notifications Subscriber,
	registry *health.Registry,
	m *metrics.Metrics,
) *Server {
	s := &Server{
		config:         cfg,
		sessions:       sessions,
		notifications:  notifications,
		health:         registry,
		metrics:        m,
		authMiddleware: NewAuthMiddleware(sessions),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", SessionTokenHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.With(middleware.Timeout(60*time.Second)).Post("/", s.handleCreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.authMiddleware.RequireSession)

			// Long-lived stream, no request timeout
			r.Get("/notifications", s.handleNotificationsWS)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/scores", s.handleSetScores)

				// Catalog and comparison
				r.Get("/universities", s.handleListUniversities)
				r.Post("/compare/{universityId}", s.handleToggleCompare)
				r.Get("/comparison", s.handleGetComparison)

				// Application flow
				r.Route("/application", func(r chi.Router) {
					r.Get("/", s.handleGetApplication)
					r.Post("/", s.handleStartApplication)
					r.Patch("/", s.handleUpdateApplication)
					r.Delete("/", s.handleCancelApplication)
					r.Post("/next", s.handleNextStep)
					r.Post("/back", s.handlePreviousStep)
					r.Post("/submit", s.handleSubmitApplication)
				})
				r.Get("/submissions", s.handleListSubmissions)
			})
		})
	})

	s.router = r
}
