// Package middleware provides HTTP middleware for the task tracker API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// UserContextKey is the context key for the authenticated identity.
const UserContextKey ContextKey = "user"

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Identity, error)
}

// AuthMiddleware returns a Gin middleware that requires a valid bearer token.
func AuthMiddleware(tokens TokenParser, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		id, err := tokens.Parse(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(string(UserContextKey), id)

		log.Debug().
			Str("user_id", id.ID.String()).
			Str("role", string(id.Role)).
			Str("path", c.Request.URL.Path).
			Msg("authenticated request")

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUser retrieves the authenticated identity from the Gin context.
// Returns nil if no user is authenticated.
func GetUser(c *gin.Context) *auth.Identity {
	v, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	id, ok := v.(*auth.Identity)
	if !ok {
		return nil
	}
	return id
}

// RequireUser returns the authenticated identity or aborts with 401.
func RequireUser(c *gin.Context) *auth.Identity {
	id := GetUser(c)
	if id == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	return id
}

// RequireRole returns a middleware that rejects callers without role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := RequireUser(c)
		if id == nil {
			return
		}
		if id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(role) + " access required"})
			return
		}
		c.Next()
	}
}

// Caller converts the authenticated identity into a comments.Caller.
// The second result is false when the request is unauthenticated; the
// response has already been written in that case.
func Caller(c *gin.Context) (comments.Caller, bool) {
	id := RequireUser(c)
	if id == nil {
		return comments.Caller{}, false
	}
	return comments.Caller{
		ID:        id.ID,
		Role:      id.Role,
		Subdomain: id.Subdomain,
		Name:      id.Name,
	}, true
}
