package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-rec-api/internal/service"
)

func TestMetricsCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewMetricsService()

	router := gin.New()
	router.Use(Metrics(svc))
	router.GET("/courses", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses", nil))
	if got := svc.Snapshot().RequestsTotal; got != 1 {
		t.Fatalf("unexpected request count: %d", got)
	}

	// The scrape endpoint itself is not counted.
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if got := svc.Snapshot().RequestsTotal; got != 1 {
		t.Fatalf("scrape requests should be excluded, count: %d", got)
	}

	// Unmatched routes are observed under their raw path.
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no-such-route", nil))
	if got := svc.Snapshot().RequestsTotal; got != 2 {
		t.Fatalf("unexpected request count after 404: %d", got)
	}
}

func TestMetricsNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(nil))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
