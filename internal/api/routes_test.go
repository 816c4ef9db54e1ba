package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/metrics"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }
func (fakeDB) Health() map[string]any     { return map[string]any{"total_conns": 1} }

func newTestRouter(t *testing.T) (*Router, *auth.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := metrics.NewPrometheusMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	tokens := auth.NewTokenManager("test-secret-that-is-at-least-32-bytes-long!", time.Hour)
	cfg := DefaultConfig()
	cfg.RateLimit.Requests = 1000

	r, err := NewRouter(cfg, Dependencies{
		Tokens:   tokens,
		Database: fakeDB{},
		Metrics:  m,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r, tokens
}

func serve(r *Router, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/health/db", "/health/storage", "/version"} {
		if w := serve(r, "GET", path, "", ""); w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}

	w := serve(r, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tasktracker_http_requests_total") {
		t.Fatal("expected request counter in exposition")
	}

	if w := serve(r, "POST", "/auth/login", "", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty login, got %d", w.Code)
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	r, tokens := newTestRouter(t)

	if w := serve(r, "GET", "/api/v1/comments/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	admin, _, err := tokens.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleAdmin, Subdomain: "acme"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := serve(r, "GET", "/api/v1/comments/me", admin, ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin on worker route, got %d", w.Code)
	}

	worker, _, err := tokens.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleWorker, Subdomain: "acme"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, path := range []string{"/api/v1/comments/acme", "/api/v1/conversations", "/api/v1/chat-groups"} {
		if w := serve(r, "GET", path, worker, ""); w.Code != http.StatusForbidden {
			t.Errorf("GET %s as worker: expected 403, got %d", path, w.Code)
		}
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	r, err := NewRouter(cfg, Dependencies{Tokens: auth.NewTokenManager("k", time.Hour)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	w := serve(r, "POST", "/auth/login", "", `{"subdomain":"acme","username":"someone","password":"x"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}
