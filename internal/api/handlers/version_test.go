package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestVersion(t *testing.T) {
	r := gin.New()
	NewVersionHandler(VersionInfo{Version: "1.2.0", Commit: "abc123"}).RegisterPublicRoutes(r)

	resp := DoRequest(r, AuthenticatedRequest("GET", "/version"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var info VersionInfo
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.BuildDate != "" {
		t.Fatalf("unexpected version info: %+v", info)
	}
}
