package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/api/middleware"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/handlers"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

const (
	// defaultMaxBody caps JSON and form bodies.
	defaultMaxBody = 8 * 1024

	defaultMaxUpload = 5 << 20
)

// Options wires the router's collaborators.
type Options struct {
	Logger         zerolog.Logger
	Handler        *handlers.Handler
	Auth           middleware.Authenticator
	Sessions       http.Handler      // serves GET /ws
	Redis          *store.RedisStore // enables rate limiting when set
	RateLimit      middleware.RateLimiterConfig
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter creates and configures the HTTP router.
func NewRouter(opts Options) *chi.Mux {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}

	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if opts.Redis != nil {
		limiter := middleware.NewRateLimiter(opts.Redis.Client(), opts.Logger, opts.RateLimit)
		r.Use(limiter.Middleware)
	}

	// CORS - the browser frontend sends credentials
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := opts.Handler
	auth := middleware.NewAuthMiddleware(opts.Auth, opts.Logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/ws", opts.Sessions.ServeHTTP) // authenticates with ?token=

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(defaultMaxBody))

		r.Post("/register", h.Register)
		r.Post("/token", h.Token)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/users/me", h.Me)
			r.Get("/todos", h.ListTodos)
		})
	})

	// Uploads get their own body cap
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(opts.MaxUploadBytes))
		r.Use(auth.RequireAuth)

		r.Post("/upload", h.Upload)
	})

	return r
}
