package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func issueToken(t *testing.T, tokens *auth.TokenManager, role models.Role) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	tok, _, err := tokens.Issue(auth.Identity{ID: id, Role: role, Subdomain: "acme", Name: "Test"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return tok, id
}

func authRouter(tokens *auth.TokenManager) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(tokens, zerolog.Nop()))
	r.GET("/test", func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID.String()})
	})
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-that-is-at-least-32-bytes-long!", time.Hour)
	tok, userID := issueToken(t, tokens, models.RoleWorker)
	r := authRouter(tokens)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if want := `{"user_id":"` + userID.String() + `"}`; w.Body.String() != want {
		t.Fatalf("expected body %s, got %s", want, w.Body.String())
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-that-is-at-least-32-bytes-long!", time.Hour)
	other := auth.NewTokenManager("another-secret-that-is-32-bytes-long!!", time.Hour)
	foreign, _ := issueToken(t, other, models.RoleAdmin)
	r := authRouter(tokens)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"foreign key", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", w.Code)
			}
			if w.Body.String() != `{"error":"authentication required"}` {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-that-is-at-least-32-bytes-long!", time.Hour)
	r := authRouter(tokens)

	t.Run("worker forbidden", func(t *testing.T) {
		tok, _ := issueToken(t, tokens, models.RoleWorker)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", w.Code)
		}
		if w.Body.String() != `{"error":"admin access required"}` {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		tok, _ := issueToken(t, tokens, models.RoleAdmin)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "bearer "+tok)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	})
}

func TestCaller(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if _, ok := Caller(c); ok {
		t.Fatal("expected no caller without identity")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}

	id := &auth.Identity{ID: uuid.New(), Role: models.RoleAdmin, Subdomain: "acme", Name: "Ada"}
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Set(string(UserContextKey), id)
	caller, ok := Caller(c2)
	if !ok {
		t.Fatal("expected caller")
	}
	if caller.ID != id.ID || caller.Subdomain != "acme" || !caller.IsAdmin() {
		t.Fatalf("unexpected caller: %+v", caller)
	}
}
