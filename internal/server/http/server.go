// Package httpserver exposes the auth gateway over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/authgate/internal/ratelimit"
	"github.com/and161185/authgate/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// System is the health and introspection surface.
type System interface {
	Health(ctx context.Context) service.HealthReport
	DescribeSchema(ctx context.Context) (*service.SchemaOverview, string, error)
}

// Options tune the router.
type Options struct {
	CORSOrigins    []string
	AuthPolicy     ratelimit.Policy
	HealthPolicy   ratelimit.Policy
	RequestTimeout time.Duration
	// ExposeSchema mounts the schema introspection routes.
	ExposeSchema bool
}

// DefaultHealthPolicy allows 60 health checks per minute per client.
var DefaultHealthPolicy = ratelimit.Policy{Prefix: "rl:health", Limit: 60, Window: time.Minute}

// Server holds the handler dependencies.
type Server struct {
	auth    service.AuthService
	system  System
	limiter *ratelimit.Limiter
	opts    Options
	log     *zap.Logger
}

// New builds a Server. lim may be nil to disable rate limiting.
func New(auth service.AuthService, system System, lim *ratelimit.Limiter, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{auth: auth, system: system, limiter: lim, opts: opts, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(s.log))
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.opts.HealthPolicy))
		r.Get("/health", s.handleHealth)
		r.Get("/", s.handleHealth)
	})

	for _, prefix := range []string{"/auth", "/V1/auth"} {
		r.Route(prefix, s.authRoutes)
	}

	if s.opts.ExposeSchema {
		r.Get("/system/database-schema", s.handleSchema)
		r.Get("/V1/system/database-schema", s.handleSchema)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found", Code: "NOT_FOUND"})
	})
	return r
}

func (s *Server) authRoutes(r chi.Router) {
	r.Use(noStore)
	r.Use(s.limiter.Middleware(s.opts.AuthPolicy))

	r.Post("/sign-in", s.handleSignIn)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Post("/reset-password", s.handleResetPassword)
	r.Post("/resend-verification", s.handleResendVerification)
	r.Post("/verify-email", s.handleVerifyEmail)
	r.Post("/sync-token", s.handleSyncToken)
	r.With(s.requireSession).Post("/check-login", s.handleCheckLogin)
}
