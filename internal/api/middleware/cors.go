package middleware

import (
	"net/http"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// Production requires an explicit origin list and panics without one.
// Elsewhere an empty list allows every origin.
func CORS(allowedOrigins []string, env config.Environment, logger zerolog.Logger) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		if env == config.EnvProduction {
			panic("CORS_ORIGINS must be set in production")
		}
		logger.Warn().Str("component", "cors").Msg("CORS_ORIGINS is empty, all origins are allowed")
	}

	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := allowAll
		if !allowed && origin != "" {
			_, allowed = originSet[strings.ToLower(origin)]
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
