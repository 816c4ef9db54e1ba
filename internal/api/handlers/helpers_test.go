package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const testTenant = "acme"

func init() {
	gin.SetMode(gin.TestMode)
}

// testWorker returns a worker identity of the test tenant.
func testWorker() *auth.Identity {
	return &auth.Identity{ID: uuid.New(), Role: models.RoleWorker, Subdomain: testTenant, Name: "Wanda Worker"}
}

// testAdmin returns an admin identity of the test tenant.
func testAdmin() *auth.Identity {
	return &auth.Identity{ID: uuid.New(), Role: models.RoleAdmin, Subdomain: testTenant, Name: "Ada Admin"}
}

// SetupTestRouter returns an engine that injects user as the authenticated
// identity. A nil user leaves requests unauthenticated.
func SetupTestRouter(user *auth.Identity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(string(middleware.UserContextKey), user)
		}
		c.Next()
	})
	return r
}

// AuthenticatedRequest builds a request without a body.
func AuthenticatedRequest(method, path string) *http.Request {
	req, _ := http.NewRequest(method, path, nil)
	return req
}

// JSONRequest builds a request with a JSON body.
func JSONRequest(method, path, body string) *http.Request {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req on r and returns the recorded response.
func DoRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
