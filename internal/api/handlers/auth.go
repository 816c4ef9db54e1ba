// Package handlers provides HTTP handlers for the task tracker API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountStore looks up the accounts that can log in.
type AccountStore interface {
	GetWorkerByUsername(ctx context.Context, subdomain, username string) (*models.Worker, error)
	GetAdminByEmail(ctx context.Context, subdomain, email string) (*models.Admin, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	accounts AccountStore
	tokens   TokenIssuer
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts AccountStore, tokens TokenIssuer, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
}

type account struct {
	id   uuid.UUID
	name string
	hash string
}

func (h *AuthHandler) lookup(ctx context.Context, req models.LoginRequest) (*account, error) {
	switch req.Role {
	case models.RoleWorker:
		w, err := h.accounts.GetWorkerByUsername(ctx, req.Subdomain, req.Username)
		if err != nil {
			return nil, err
		}
		return &account{id: w.ID, name: w.Name, hash: w.PasswordHash}, nil
	default:
		a, err := h.accounts.GetAdminByEmail(ctx, req.Subdomain, strings.ToLower(req.Username))
		if err != nil {
			return nil, err
		}
		return &account{id: a.ID, name: a.Name, hash: a.PasswordHash}, nil
	}
}

// Login verifies a worker username or admin email against the tenant and
// issues a bearer token.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Subdomain = strings.TrimSpace(req.Subdomain)
	if !models.IsTenantSubdomain(req.Subdomain) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Company name is missing"})
		return
	}

	acct, err := h.lookup(c.Request.Context(), req)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error().Err(err).Str("subdomain", req.Subdomain).Msg("failed to look up account")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		acct = &account{}
	}
	if err := auth.VerifyPassword(req.Password, acct.hash); err != nil {
		h.logger.Info().
			Str("subdomain", req.Subdomain).
			Str("role", string(req.Role)).
			Msg("failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expires, err := h.tokens.Issue(auth.Identity{
		ID:        acct.id,
		Role:      req.Role,
		Subdomain: req.Subdomain,
		Name:      acct.name,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.logger.Info().
		Str("user_id", acct.id.String()).
		Str("role", string(req.Role)).
		Str("subdomain", req.Subdomain).
		Msg("user logged in")

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expires,
		UserID:    acct.id,
		Name:      acct.name,
		Role:      req.Role,
		Subdomain: req.Subdomain,
	})
}
