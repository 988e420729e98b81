package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/infrastructure/security"
	"github.com/tourloop/tourloop-go/pkg/config"
)

// EnvironmentHandlers contains the environment provisioning handlers. These
// sit outside the environment middleware because they establish the
// environment in the first place.
type EnvironmentHandlers struct {
	manager     *environment.Manager
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewEnvironmentHandlers creates environment handlers with injected
// dependencies.
func NewEnvironmentHandlers(manager *environment.Manager, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EnvironmentHandlers {
	return &EnvironmentHandlers{
		manager:     manager,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

type registerEnvironmentRequest struct {
	EnvironmentID string `json:"environmentId" binding:"required"`
	Name          string `json:"name" binding:"required"`
	ProjectID     string `json:"projectId" binding:"required"`
}

// PostRegisterEnvironment handles POST /api/v1/environment/register - adds a
// new environment to the registry and scaffolds its config with generated
// credentials. The secret is returned exactly once; only its hash is stored.
func (h *EnvironmentHandlers) PostRegisterEnvironment(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_register_environment_request", "unknown")
	defer marker.Complete()

	var req registerEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "environmentId, name and projectId are required"})
		return
	}
	marker.EnvironmentID = req.EnvironmentID

	if err := environment.RegisterEnvironment(req.EnvironmentID, req.Name); err != nil {
		h.logger.Environment().Error("Environment registration failed",
			"environmentId", req.EnvironmentID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	secret, err := security.GenerateSecureToken(32)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate credentials"})
		return
	}
	secretHash, err := security.HashSecret(secret)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate credentials"})
		return
	}
	jwtSecret, err := security.GenerateSecureKey(64)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate credentials"})
		return
	}

	cfg := &environment.Config{
		EnvironmentID: req.EnvironmentID,
		Name:          req.Name,
		ProjectID:     req.ProjectID,
		Status:        "inactive",
		SecretHash:    secretHash,
		JWTSecret:     jwtSecret,
	}
	if err := environment.SaveConfig(cfg); err != nil {
		h.logger.Environment().Error("Environment config scaffold failed",
			"environmentId", req.EnvironmentID, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write environment config"})
		return
	}

	h.logger.Environment().Info("Environment registered", "environmentId", req.EnvironmentID)
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"status":        "registered",
		"environmentId": req.EnvironmentID,
		"secret":        secret,
	})
}

type environmentTokenRequest struct {
	EnvironmentID  string `json:"environmentId" binding:"required"`
	ExternalUserID string `json:"externalUserId" binding:"required"`
	Secret         string `json:"secret" binding:"required"`
}

// PostEnvironmentToken handles POST /api/v1/environment/token - exchanges
// the environment secret for a user-scoped bearer token the SDK presents on
// every subsequent call.
func (h *EnvironmentHandlers) PostEnvironmentToken(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_environment_token_request", "unknown")
	defer marker.Complete()

	var req environmentTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "environmentId, externalUserId and secret are required"})
		return
	}
	marker.EnvironmentID = req.EnvironmentID

	envCtx, err := h.manager.GetContext(req.EnvironmentID)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusNotFound, gin.H{"error": "environment not found"})
		return
	}

	if !security.VerifySecret(req.Secret, envCtx.Config.SecretHash) {
		h.logger.Auth().Warn("Environment token request with bad secret",
			"environmentId", req.EnvironmentID)
		marker.SetSuccess(false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}

	token, err := security.GenerateEnvironmentToken(
		req.EnvironmentID, req.ExternalUserID, envCtx.Config.JWTSecret, config.TokenTTL)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int(config.TokenTTL.Seconds()),
	})
}
