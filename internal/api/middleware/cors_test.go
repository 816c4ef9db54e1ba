package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func corsRouter(origins []string, env config.Environment) *gin.Engine {
	r := gin.New()
	r.Use(CORS(origins, env, zerolog.Nop()))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", []string{"https://acme.tasks.example"}, "GET", "https://acme.tasks.example", 200, "https://acme.tasks.example"},
		{"trailing slash in config", []string{"https://acme.tasks.example/"}, "GET", "https://acme.tasks.example", 200, "https://acme.tasks.example"},
		{"case insensitive", []string{"https://acme.tasks.example"}, "GET", "HTTPS://ACME.TASKS.EXAMPLE", 200, "HTTPS://ACME.TASKS.EXAMPLE"},
		{"disallowed origin", []string{"https://acme.tasks.example"}, "GET", "https://evil.example.com", 200, ""},
		{"no origin header", []string{"https://acme.tasks.example"}, "GET", "", 200, ""},
		{"allow all in development", nil, "GET", "http://localhost:5173", 200, "http://localhost:5173"},
		{"preflight", []string{"https://acme.tasks.example"}, "OPTIONS", "https://acme.tasks.example", 204, "https://acme.tasks.example"},
		{"preflight disallowed", []string{"https://acme.tasks.example"}, "OPTIONS", "https://evil.example.com", 204, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := corsRouter(tt.origins, config.EnvDevelopment)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("expected Access-Control-Allow-Origin %q, got %q", tt.wantAllow, got)
			}
			if tt.wantAllow != "" {
				if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
					t.Fatalf("unexpected Access-Control-Allow-Headers %q", got)
				}
				if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
					t.Fatalf("expected Access-Control-Max-Age '86400', got %q", got)
				}
			}
		})
	}
}

func TestCORS_ProductionPanicsWithoutOrigins(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic when CORS_ORIGINS is empty in production")
		}
		if msg, _ := r.(string); msg != "CORS_ORIGINS must be set in production" {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()

	CORS(nil, config.EnvProduction, zerolog.Nop())
}

func TestCORS_ProductionWithOrigins(t *testing.T) {
	r := corsRouter([]string{"https://acme.tasks.example"}, config.EnvProduction)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://acme.tasks.example")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}
