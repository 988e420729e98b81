package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/messaging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/presentation/http/middleware"
)

// HealthHandlers contains the health and status handlers.
type HealthHandlers struct {
	manager     *environment.Manager
	broadcaster *messaging.SDKBroadcaster
	perfTracker *performance.Tracker
}

// NewHealthHandlers creates health handlers with injected dependencies.
func NewHealthHandlers(manager *environment.Manager, broadcaster *messaging.SDKBroadcaster, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		manager:     manager,
		broadcaster: broadcaster,
		perfTracker: perfTracker,
	}
}

// GetHealth handles GET /health - process liveness plus a summary of what
// the instance is carrying.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"activeEnvironments":  h.manager.ActiveCount(),
		"completedOperations": h.perfTracker.CompletedCount(),
		"uptime":              h.perfTracker.Uptime().String(),
	})
}

// GetEnvironmentHealth handles GET /api/v1/health - per-environment health,
// including a live database ping.
func (h *HealthHandlers) GetEnvironmentHealth(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	dbStatus := "ok"
	if envCtx.Database == nil || envCtx.Database.Conn == nil {
		dbStatus = "no connection"
	} else if err := envCtx.Database.Conn.Ping(); err != nil {
		dbStatus = "unreachable"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"environmentId": envCtx.EnvironmentID,
		"status":        envCtx.Status,
		"database":      dbStatus,
		"databaseInfo":  envCtx.GetDatabaseInfo(),
		"sdkClients":    h.broadcaster.ClientCount(envCtx.EnvironmentID),
	})
}
