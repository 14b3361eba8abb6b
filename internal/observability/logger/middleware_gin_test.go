package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicedesk/internal/observability/context"
)

func TestGinMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got == "" {
		t.Fatalf("expected X-Request-Id header to be set")
	}
	if got := w.Header().Get(HeaderCorrelationID); got == "" {
		t.Fatalf("expected X-Correlation-Id header to be set")
	}
}

func TestGinMiddlewarePropagatesIncomingIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var seenRequest, seenCorrelation string
	r.GET("/ping", func(c *gin.Context) {
		seenRequest = obscontext.RequestIDFromGin(c)
		seenCorrelation = obscontext.CorrelationIDFromGin(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	req.Header.Set(HeaderCorrelationID, "corr-456")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seenRequest != "req-123" {
		t.Fatalf("expected request id req-123, got %q", seenRequest)
	}
	if seenCorrelation != "corr-456" {
		t.Fatalf("expected correlation id corr-456, got %q", seenCorrelation)
	}
	if got := w.Header().Get(HeaderCorrelationID); got != "corr-456" {
		t.Fatalf("expected echoed correlation id, got %q", got)
	}
}
