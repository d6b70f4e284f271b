package middleware

import (
	"net/http"
	"strings"

	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// TenantIDKey is the gin context key holding the resolved tenant ID.
	TenantIDKey = "tenant_id"
	// TenantHeaderKey is the request header carrying the tenant ID.
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig configures tenant resolution.
type TenantMiddlewareConfig struct {
	// SkipPaths bypass tenant resolution entirely (health probes).
	SkipPaths []string
	// Required rejects requests without a tenant header when true. A
	// malformed header is rejected either way.
	Required bool
	Logger   *zap.Logger
}

// DefaultTenantConfig requires a tenant on everything except health probes.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready", "/api/v1/health"},
		Required:  true,
	}
}

// TenantMiddlewareWithConfig resolves the tenant from X-Tenant-ID and makes
// it available to handlers via the gin context and to services via the
// request context logger.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skippedPath(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		tenantID := c.GetHeader(TenantHeaderKey)
		if tenantID == "" {
			if cfg.Required {
				rejectUnauthorized(c, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		if _, err := uuid.Parse(tenantID); err != nil {
			rejectUnauthorized(c, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID)

		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified", zap.String("tenant_id", tenantID))
		}

		c.Next()
	}
}

func skippedPath(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip+"/") {
			return true
		}
	}
	return false
}

func rejectUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse("UNAUTHORIZED", message))
}

// GetTenantID returns the tenant ID set by the middleware, or "".
func GetTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get(TenantIDKey); exists {
		if tid, ok := tenantID.(string); ok {
			return tid
		}
	}
	return ""
}

// GetTenantUUID returns the tenant ID as a UUID. uuid.Nil without error
// means no tenant was resolved.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}
