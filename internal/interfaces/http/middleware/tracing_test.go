package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// installSpanRecorder swaps in a recording tracer provider for the test.
func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

// tracedRouter builds a router with tracing enabled plus any extra
// middleware, serving 200 at the given path.
func tracedRouter(path string, status int, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	for _, mw := range extra {
		router.Use(mw)
	}
	router.GET(path, func(c *gin.Context) {
		c.JSON(status, gin.H{"message": "done"})
	})
	return router
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func stringAttr(span sdktrace.ReadOnlySpan, key string) string {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTracingDisabled(t *testing.T) {
	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "test-service"}))
	router.GET("/runs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracingCreatesSpanPerRoute(t *testing.T) {
	sr := installSpanRecorder(t)

	w := httptest.NewRecorder()
	tracedRouter("/runs", http.StatusOK).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	endedSpan(t, sr, "GET /runs")
}

func TestTracingTagsRequestID(t *testing.T) {
	sr := installSpanRecorder(t)

	router := gin.New()
	// RequestID must run first so the injector sees the minted ID
	router.Use(RequestID())
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector())
	router.GET("/runs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("X-Request-ID", "req-trace-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	span := endedSpan(t, sr, "GET /runs")
	assert.Equal(t, "req-trace-123", stringAttr(span, "request_id"))
}

func TestTracingTagsTenantFromHeader(t *testing.T) {
	sr := installSpanRecorder(t)
	tenantID := "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set(TenantHeaderKey, tenantID)
	tracedRouter("/runs", http.StatusOK, TracingAttributeInjector()).ServeHTTP(httptest.NewRecorder(), req)

	span := endedSpan(t, sr, "GET /runs")
	assert.Equal(t, tenantID, stringAttr(span, "tenant_id"))
}

func TestTracingRejectsMalformedTenantHeader(t *testing.T) {
	sr := installSpanRecorder(t)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set(TenantHeaderKey, "not-a-uuid; DROP TABLE spans")
	tracedRouter("/runs", http.StatusOK, TracingAttributeInjector()).ServeHTTP(httptest.NewRecorder(), req)

	span := endedSpan(t, sr, "GET /runs")
	assert.Empty(t, stringAttr(span, "tenant_id"))
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantCode    codes.Code
		description string
	}{
		{"not found", http.StatusNotFound, codes.Error, "Not Found"},
		{"unauthorized", http.StatusUnauthorized, codes.Error, "Unauthorized"},
		{"other client error", http.StatusConflict, codes.Error, "Client Error"},
		{"server error", http.StatusInternalServerError, codes.Error, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := installSpanRecorder(t)

			router := tracedRouter("/target", tt.status, SpanErrorMarker())
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/target", nil))

			span := endedSpan(t, sr, "GET /target")
			assert.Equal(t, tt.wantCode, span.Status().Code)
			assert.Equal(t, tt.description, span.Status().Description)
		})
	}

	t.Run("success leaves status unset", func(t *testing.T) {
		sr := installSpanRecorder(t)

		router := tracedRouter("/target", http.StatusOK, SpanErrorMarker())
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/target", nil))

		span := endedSpan(t, sr, "GET /target")
		assert.NotEqual(t, codes.Error, span.Status().Code)
	})

	t.Run("non-recording span is left alone", func(t *testing.T) {
		otel.SetTracerProvider(noop.NewTracerProvider())

		router := gin.New()
		router.Use(SpanErrorMarker())
		router.GET("/target", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "bad"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/target", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTenantIDPattern(t *testing.T) {
	require.True(t, tenantIDPattern.MatchString("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"))
	require.False(t, tenantIDPattern.MatchString("not-a-uuid"))
	require.False(t, tenantIDPattern.MatchString(""))
	require.False(t, tenantIDPattern.MatchString("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11-trailing"))
}
