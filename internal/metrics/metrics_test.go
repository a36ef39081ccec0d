package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentsAreIndependentPerInstance(t *testing.T) {
	a, b := New(), New()
	a.Transitions.WithLabelValues("accepted").Inc()
	if got := testutil.ToFloat64(a.Transitions.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("accepted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.Transitions.WithLabelValues("accepted")); got != 0 {
		t.Fatalf("second registry should be untouched, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/steps", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/steps", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `airway_http_request_duration_seconds_count{method="GET",route="/api/steps",status="200"} 1`) {
		t.Fatalf("request duration not exported:\n%s", body)
	}
}
