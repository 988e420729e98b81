// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/application/services"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/presentation/http/middleware"
)

// ContentHandlers contains the content activation HTTP handlers.
type ContentHandlers struct {
	startService *services.ContentStartService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewContentHandlers creates content handlers with injected dependencies.
func NewContentHandlers(startService *services.ContentStartService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ContentHandlers {
	return &ContentHandlers{
		startService: startService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// PostContentStart handles POST /api/v1/content/start - runs the activation
// pipeline and returns its result. A failed activation is a 200 with
// success:false; only malformed requests surface as errors.
func (h *ContentHandlers) PostContentStart(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_content_start_request", envCtx.EnvironmentID)
	defer marker.Complete()

	var input services.ContentStartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Content().Error("Content start request binding failed",
			"environmentId", envCtx.EnvironmentID, "error", err.Error())
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	// The token decides who the request is for; the body cannot override it.
	if userID, ok := middleware.GetExternalUserID(c); ok {
		input.ExternalUserID = userID
	}
	if input.ExternalUserID == "" {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId is required"})
		return
	}

	result := h.startService.StartSingletonContent(c.Request.Context(), envCtx, &input)

	marker.SetSuccess(result.Success)
	h.logger.Content().Info("Content start request completed",
		"environmentId", envCtx.EnvironmentID,
		"userId", input.ExternalUserID,
		"success", result.Success,
		"duration", time.Since(start))

	c.JSON(http.StatusOK, result)
}
