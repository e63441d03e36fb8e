package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/internal/service"
	"github.com/utafrali/identity-service/pkg/health"
	"github.com/utafrali/identity-service/pkg/middleware"
)

// RouterConfig holds the cross-cutting knobs the router wires up.
type RouterConfig struct {
	CORS          CORSConfig
	ServiceName   string
	AuthRateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all identity service routes registered.
// redisClient may be nil, in which case the auth endpoints are not rate limited.
func NewRouter(
	authService *service.AuthService,
	userService *service.UserService,
	healthHandler *health.Handler,
	redisClient *redis.Client,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to the auth service.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.Subject,
			Email:  claims.Email,
			Roles:  claims.Roles,
		}, nil
	}

	authHandler := NewAuthHandler(authService, logger)

	// Public auth endpoints. Credential endpoints get a per-client rate limit
	// so password guessing gets throttled before it reaches the database.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if redisClient != nil {
			r.Use(middleware.RateLimit(redisClient, cfg.AuthRateLimit, logger))
		}

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Post("/logout", authHandler.Logout)
		})
	})

	// User management endpoints (auth required).
	userHandler := NewUserHandler(userService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", userHandler.Me)

		// Self-or-admin; the handler checks ownership.
		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}/password", userHandler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/", userHandler.List)
			r.Post("/{id}/deactivate", userHandler.Deactivate)
			r.Post("/{id}/roles", userHandler.AssignRole)
			r.Delete("/{id}/roles/{role}", userHandler.RemoveRole)
		})
	})

	return r
}

// DefaultAuthRateLimit is the limit applied to credential endpoints when the
// configuration does not override it.
func DefaultAuthRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limit:  30,
		Window: time.Minute,
		Prefix: "ratelimit:auth",
	}
}
