// Package middleware provides HTTP middleware for the reconciliation service.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxRequestIDAttrLength = 128

// tenantIDPattern accepts the canonical hyphenated UUID form only. Header
// values that fail it never reach trace attributes.
var tenantIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig wraps otelgin so every request gets a span named
// "METHOD route_pattern", then tags it with request_id and tenant_id.
// Disabled config yields a pass-through handler.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	otelMiddleware := otelgin.Middleware(cfg.ServiceName)
	return func(c *gin.Context) {
		// otelgin runs the rest of the chain; the span is still open here
		otelMiddleware(c)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			tagSpan(c, span)
		}
	}
}

// TracingAttributeInjector tags the current span while handlers are still
// running. Place it after TracingWithConfig in the chain.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			tagSpan(c, span)
		}
		c.Next()
	}
}

func tagSpan(c *gin.Context, span trace.Span) {
	if requestID := spanRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if tenantID := spanTenantID(c); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
}

// spanRequestID prefers the ID minted by the RequestID middleware and falls
// back to the raw header, truncated so oversized headers cannot bloat spans.
func spanRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > maxRequestIDAttrLength {
		return headerID[:maxRequestIDAttrLength]
	}
	return headerID
}

// spanTenantID prefers the tenant resolved by the tenant middleware. The
// header fallback is validated so arbitrary text cannot be injected into
// trace attributes.
func spanTenantID(c *gin.Context) string {
	if tenantID := GetTenantID(c); tenantID != "" {
		return tenantID
	}
	if header := c.GetHeader(TenantHeaderKey); tenantIDPattern.MatchString(header) {
		return header
	}
	return ""
}

// SpanErrorMarker sets error status on the span for 4xx and 5xx responses.
// Place it after TracingWithConfig in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		span.SetStatus(codes.Error, statusDescription(statusCode))
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}

func statusDescription(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "Internal Server Error"
	case statusCode == http.StatusUnauthorized:
		return "Unauthorized"
	case statusCode == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}
