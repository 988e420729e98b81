package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/application/services"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/presentation/http/middleware"
)

// ClientContextHandlers contains the client context cache HTTP handlers.
type ClientContextHandlers struct {
	contextService *services.ClientContextService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewClientContextHandlers creates client context handlers with injected
// dependencies.
func NewClientContextHandlers(contextService *services.ClientContextService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ClientContextHandlers {
	return &ClientContextHandlers{
		contextService: contextService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// clientContextRequest is the body of a client context report.
type clientContextRequest struct {
	ExternalUserID string               `json:"externalUserId"`
	ClientContext  *rules.ClientContext `json:"clientContext" binding:"required"`
}

// PostClientContext handles POST /api/v1/client-context - stores the
// client's latest observed state. An existing entry is updated in place so
// its creation time survives; otherwise a fresh entry is written.
func (h *ClientContextHandlers) PostClientContext(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_client_context_request", envCtx.EnvironmentID)
	defer marker.Complete()

	var req clientContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	if userID, ok := middleware.GetExternalUserID(c); ok {
		req.ExternalUserID = userID
	}
	if req.ExternalUserID == "" {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId is required"})
		return
	}

	if !h.contextService.Update(c.Request.Context(), envCtx, req.ExternalUserID, req.ClientContext) {
		h.contextService.Set(c.Request.Context(), envCtx, req.ExternalUserID, req.ClientContext)
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"status": "stored"})
}

// GetClientContext handles GET /api/v1/client-context - returns the cached
// client context for a user, or an empty response on a miss.
func (h *ClientContextHandlers) GetClientContext(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	userID, ok := middleware.GetExternalUserID(c)
	if !ok {
		userID = c.Query("externalUserId")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId is required"})
		return
	}

	clientCtx := h.contextService.Get(c.Request.Context(), envCtx, userID)
	c.JSON(http.StatusOK, gin.H{
		"found":         clientCtx != nil,
		"clientContext": clientCtx,
	})
}

// DeleteClientContext handles DELETE /api/v1/client-context - drops the
// cached entry, typically when the SDK unloads.
func (h *ClientContextHandlers) DeleteClientContext(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	userID, ok := middleware.GetExternalUserID(c)
	if !ok {
		userID = c.Query("externalUserId")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId is required"})
		return
	}

	h.contextService.Remove(c.Request.Context(), envCtx, userID)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
