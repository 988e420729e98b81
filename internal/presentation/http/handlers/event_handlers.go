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

// EventHandlers contains the event tracking HTTP handlers.
type EventHandlers struct {
	trackService *services.TrackEventService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewEventHandlers creates event handlers with injected dependencies.
func NewEventHandlers(trackService *services.TrackEventService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventHandlers {
	return &EventHandlers{
		trackService: trackService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// PostTrackEvent handles POST /api/v1/events/track - records one event
// against a session. A rejected event is a 200 with accepted:false; the
// reasons are deliberately not broken out for the client.
func (h *EventHandlers) PostTrackEvent(c *gin.Context) {
	envCtx, exists := middleware.GetEnvironmentContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "environment context not found"})
		return
	}

	start := time.Now()
	marker := h.perfTracker.StartOperation("post_track_event_request", envCtx.EnvironmentID)
	defer marker.Complete()

	var input services.TrackEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Event().Error("Track event request binding failed",
			"environmentId", envCtx.EnvironmentID, "error", err.Error())
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	if userID, ok := middleware.GetExternalUserID(c); ok {
		input.ExternalUserID = userID
	}
	if input.ExternalUserID == "" || input.SessionID == "" || input.EventCodeName == "" {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalUserId, sessionId and eventName are required"})
		return
	}

	event, accepted := h.trackService.TrackEvent(c.Request.Context(), envCtx, &input)

	marker.SetSuccess(accepted)
	h.logger.Event().Debug("Track event request completed",
		"environmentId", envCtx.EnvironmentID,
		"sessionId", input.SessionID,
		"event", input.EventCodeName,
		"accepted", accepted,
		"duration", time.Since(start))

	response := gin.H{"accepted": accepted}
	if accepted {
		response["event"] = event
	}
	c.JSON(http.StatusOK, response)
}
