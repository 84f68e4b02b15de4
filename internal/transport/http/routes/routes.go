package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/security"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/handlers"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Signup   handlers.SignupService
	Recovery handlers.RecoveryService
	Auth     handlers.LoginService
	Accounts handlers.AccountService
	Tokens   middleware.TokenVerifier
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	JWTManager  *security.JWTManager
	Database    DatabaseChecker
	Cache       CacheChecker
	HTTPMetrics *middleware.HTTPMetrics
	Tracer      trace.Tracer
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config == nil {
		deps.Config = &config.AppConfig{}
	}
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Tracing(deps.Tracer))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if origins := deps.Config.CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.JWTManager != nil {
		r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.JWTManager).Keys)
	}

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")

		if deps.Services.Signup != nil {
			handlers.NewSignupHandler(deps.Services.Signup).
				RegisterRoutes(authGroup, ipThrottle(deps, "signup_ip", deps.Config.RateLimit.SignupMaxAttempts)...)
		}

		if deps.Services.Auth != nil {
			handlers.NewAuthHandler(deps.Services.Auth).
				RegisterRoutes(authGroup, ipThrottle(deps, "login_ip", deps.Config.RateLimit.LoginMaxAttempts)...)
		}

		if deps.Services.Recovery != nil {
			handlers.NewRecoveryHandler(deps.Services.Recovery).
				RegisterRoutes(authGroup, ipThrottle(deps, "recovery_ip", deps.Config.RateLimit.RecoveryMaxAttempts)...)
		}

		if deps.Services.Accounts != nil && deps.Services.Tokens != nil {
			authMiddleware := middleware.RequireAuth(deps.Services.Tokens)
			accountHandler := handlers.NewAccountHandler(deps.Services.Accounts)

			api.GET("/me", authMiddleware, accountHandler.Me)

			superAdmin := api.Group("/superadmin")
			superAdmin.Use(authMiddleware, middleware.RequireRole(domain.RoleSuperAdmin))
			superAdmin.PATCH("/users/:id/toggle", accountHandler.ToggleDisabled)
			superAdmin.PATCH("/users/:id/role", accountHandler.ChangeRole)
		}
	}

	handlers.RegisterSwagger(r, deps.Config.App.Env)

	return r
}

// ipThrottle builds the per-client request throttle placed in front of a
// credential endpoint. It returns nothing when throttling is unconfigured.
func ipThrottle(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
