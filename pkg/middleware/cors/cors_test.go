package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(origins))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestAllowsConfiguredOrigin(t *testing.T) {
	router := corsRouter([]string{"https://portal.school.edu/"})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://portal.school.edu")
	router.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.school.edu" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials for trusted origin, got %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Expose-Headers"); got != exposeHeaders {
		t.Fatalf("unexpected expose-headers: %q", got)
	}
}

func TestBlocksUnknownOrigin(t *testing.T) {
	router := corsRouter([]string{"https://portal.school.edu"})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	router.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be allowed, got %q", got)
	}
}

func TestWildcardWithoutCredentials(t *testing.T) {
	router := corsRouter(nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("wildcard origin cannot carry credentials, got %q", got)
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	router := corsRouter([]string{"https://portal.school.edu"})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://portal.school.edu")
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); got != allowMethods {
		t.Fatalf("unexpected allow-methods: %q", got)
	}
}
