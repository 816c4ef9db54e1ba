// Package api provides the HTTP API for the task tracker server.
package api

import (
	"net/http"

	"github.com/MacJediWizard/tasktracker/internal/api/handlers"
	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/attendance"
	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

// Config holds configuration for the API router.
type Config struct {
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed outside production.
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig
	MaxBodyBytes   int64
	// TrustedProxies are passed to gin; nil trusts none.
	TrustedProxies []string
	Version        handlers.VersionInfo
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:    config.EnvDevelopment,
		AllowedOrigins: []string{},
		RateLimit:      middleware.RateLimitConfig{Requests: 100, Period: "1m"},
		MaxBodyBytes:   8 << 20,
		Version:        handlers.VersionInfo{Version: "dev"},
	}
}

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Comments      handlers.CommentService
	Conversations handlers.ConversationService
	Accounts      handlers.AccountStore
	Attendance    handlers.AttendanceStore
	Tokens        TokenService
	Database      handlers.DatabaseHealthChecker
	// Storage is nil when attachments are kept in the database.
	Storage      handlers.StorageHealthChecker
	Productivity attendance.ProductivityCalculator
	Metrics      MetricsExporter
	LimiterStore limiter.Store
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	handlers.TokenIssuer
	middleware.TokenParser
}

// MetricsExporter instruments requests and serves the scrape endpoint.
type MetricsExporter interface {
	Middleware() gin.HandlerFunc
	Handler() http.Handler
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}
	if err := r.Engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Engine.Use(deps.Metrics.Middleware())
	}
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment, logger))
	r.Engine.Use(middleware.BodyLimitMiddleware(cfg.MaxBodyBytes))

	store := deps.LimiterStore
	if store == nil {
		var err error
		if store, err = middleware.NewLimiterStore(cfg.RateLimit.RedisURL); err != nil {
			return nil, err
		}
	}
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit, store, logger)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Public endpoints
	handlers.NewHealthHandler(deps.Database, deps.Storage, logger).RegisterPublicRoutes(r.Engine)
	handlers.NewVersionHandler(cfg.Version).RegisterPublicRoutes(r.Engine)
	if deps.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	handlers.NewAuthHandler(deps.Accounts, deps.Tokens, logger).RegisterRoutes(r.Engine.Group("/auth"))

	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(deps.Tokens, logger))

	handlers.NewCommentsHandler(deps.Comments, logger).RegisterRoutes(apiV1)
	handlers.NewConversationsHandler(deps.Conversations, logger).RegisterRoutes(apiV1)

	attendanceHandler := handlers.NewAttendanceHandler(deps.Attendance, nil, logger)
	if deps.Productivity != nil {
		attendanceHandler.WithProductivity(deps.Productivity)
	}
	attendanceHandler.RegisterRoutes(apiV1)

	r.logger.Info().Msg("API router initialized")

	return r, nil
}
