// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/infrastructure/security"
)

// EnvironmentMiddleware resolves the environment named by the request and
// attaches its full context. Requests without a resolvable environment never
// reach a handler.
func EnvironmentMiddleware(manager *environment.Manager, perfTracker *performance.Tracker) gin.HandlerFunc {
	logger := manager.GetLogger()

	return func(c *gin.Context) {
		start := time.Now()
		marker := perfTracker.StartOperation("middleware_environment_resolution", "unknown")
		defer marker.Complete()

		environmentID := c.GetHeader("X-Environment-ID")
		if environmentID == "" {
			environmentID = c.Query("environmentId") // Fallback for websocket upgrades
		}

		marker.AddMetadata("path", c.Request.URL.Path)
		marker.AddMetadata("method", c.Request.Method)
		if environmentID != "" {
			marker.EnvironmentID = environmentID
		}

		if environmentID == "" {
			errMsg := "X-Environment-ID header or environmentId query param is required"
			if logger != nil {
				logger.Environment().Warn(errMsg, "path", c.Request.URL.Path)
			}
			marker.SetSuccess(false)
			marker.SetError(fmt.Errorf("%s", errMsg))
			c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
			c.Abort()
			return
		}

		envCtx, err := manager.GetContext(environmentID)
		if err != nil {
			if logger != nil {
				logger.Environment().Error("Environment resolution failed",
					"environmentId", environmentID, "error", err.Error())
			}
			marker.SetSuccess(false)
			marker.SetError(err)
			c.JSON(http.StatusNotFound, gin.H{"error": "environment not found"})
			c.Abort()
			return
		}

		if logger != nil {
			logger.Environment().Debug("Environment context resolved",
				"environmentId", envCtx.EnvironmentID,
				"duration", time.Since(start),
				"database", envCtx.GetDatabaseInfo(),
			)
		}
		marker.SetSuccess(true)

		c.Set("environment", envCtx)
		c.Next()
	}
}

// AuthMiddleware validates the bearer token minted for this environment and
// pins the external user id it carries onto the request.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		envCtx, exists := GetEnvironmentContext(c)
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token") // Fallback for websocket upgrades
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization token required"})
			c.Abort()
			return
		}

		claims, err := security.ValidateJWT(token, envCtx.Config.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		environmentID, externalUserID, ok := security.EnvironmentFromClaims(claims)
		if !ok || environmentID != envCtx.EnvironmentID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token not valid for this environment"})
			c.Abort()
			return
		}

		c.Set("externalUserId", externalUserID)
		c.Next()
	}
}

// GetEnvironmentContext retrieves the environment context from gin context.
func GetEnvironmentContext(c *gin.Context) (*environment.Context, bool) {
	raw, exists := c.Get("environment")
	if !exists {
		return nil, false
	}
	ctx, ok := raw.(*environment.Context)
	return ctx, ok
}

// GetExternalUserID retrieves the authenticated external user id, when the
// auth middleware ran.
func GetExternalUserID(c *gin.Context) (string, bool) {
	raw, exists := c.Get("externalUserId")
	if !exists {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok
}
