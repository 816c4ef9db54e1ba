package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "tasktracker:ratelimit"

// RateLimitConfig configures the request rate limiter.
type RateLimitConfig struct {
	Requests int64
	Period   string
	// RedisURL selects a shared redis store; empty keeps counters in memory.
	RedisURL string
	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// NewLimiterStore returns a redis-backed limiter store when redisURL is set,
// otherwise an in-process memory store.
func NewLimiterStore(redisURL string) (limiter.Store, error) {
	if redisURL == "" {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, nil
}

// NewRateLimiter creates a Gin middleware for rate limiting.
// Period is a duration string such as "1m" or "1h".
func NewRateLimiter(cfg RateLimitConfig, store limiter.Store, logger zerolog.Logger) (gin.HandlerFunc, error) {
	duration, err := time.ParseDuration(cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit period %q: %w", cfg.Period, err)
	}
	if cfg.Requests <= 0 {
		return nil, fmt.Errorf("invalid rate limit requests %d", cfg.Requests)
	}

	log := logger.With().Str("component", "ratelimit").Logger()
	instance := limiter.New(store, limiter.Rate{
		Period: duration,
		Limit:  cfg.Requests,
	}, limiter.WithTrustForwardHeader(cfg.TrustProxy))

	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			log.Warn().Str("client_ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Error().Err(err).Msg("rate limiter store failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}),
	), nil
}
