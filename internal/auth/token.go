// Package auth issues and verifies bearer tokens and account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when a TokenManager is created with a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

const issuer = "tasktracker"

// Token errors.
var (
	ErrNoSigningKey = errors.New("cannot sign token without a key")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the custom claims carried by an access token.
type Claims struct {
	UserID    uuid.UUID   `json:"user_id"`
	Role      models.Role `json:"role"`
	Subdomain string      `json:"subdomain"`
	Name      string      `json:"name"`
	jwt.RegisteredClaims
}

// Identity is the authenticated principal extracted from a token.
type Identity struct {
	ID        uuid.UUID
	Role      models.Role
	Subdomain string
	Name      string
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(key string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{key: []byte(key), ttl: ttl, now: time.Now}
}

// Issue signs a token for id and returns it with its expiry.
func (m *TokenManager) Issue(id Identity) (string, time.Time, error) {
	if len(m.key) == 0 {
		return "", time.Time{}, ErrNoSigningKey
	}
	if !id.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: unknown role %q", id.Role)
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID:    id.ID,
		Role:      id.Role,
		Subdomain: id.Subdomain,
		Name:      id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a token and returns the identity it carries.
func (m *TokenManager) Parse(token string) (*Identity, error) {
	if len(m.key) == 0 {
		return nil, ErrNoSigningKey
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		ID:        claims.UserID,
		Role:      claims.Role,
		Subdomain: claims.Subdomain,
		Name:      claims.Name,
	}, nil
}
