package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/security"
)

// ContentSessionService creates sessions and resolves reusable session ids
// for the activation pipeline.
type ContentSessionService struct {
	logger *logging.ChanneledLogger
}

// NewContentSessionService creates the session helper service.
func NewContentSessionService(logger *logging.ChanneledLogger) *ContentSessionService {
	return &ContentSessionService{logger: logger}
}

// CreateSession opens a new session for a version and records its start
// event in the same transaction.
func (s *ContentSessionService) CreateSession(ctx context.Context, env EnvContext, bizUser *user.BizUser, v *content.CustomContentVersion, reason string) (*session.BizSession, error) {
	start := time.Now()

	newSession := &session.BizSession{
		ID:        security.GenerateULID(),
		ContentID: v.Content.ID,
		VersionID: v.Version.ID,
		BizUserID: bizUser.ID,
		State:     session.StateActive,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}

	codeName := startEventName(v.Content.Type)
	eventID := codeName
	if def, err := env.EventRepo().GetByCodeName(ctx, codeName); err == nil && def != nil {
		eventID = def.ID
	}

	startEvent := &session.BizEvent{
		ID:           security.GenerateULID(),
		BizUserID:    bizUser.ID,
		EventID:      eventID,
		BizSessionID: newSession.ID,
		Data:         map[string]any{"reason": reason},
		CreatedAt:    newSession.CreatedAt,
	}

	if err := env.SessionRepo().Create(ctx, newSession, startEvent); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Session().Info("Session created",
			"environmentId", env.GetEnvironmentID(),
			"sessionId", newSession.ID,
			"contentId", v.Content.ID,
			"reason", reason,
			"duration", time.Since(start))
	}
	return newSession, nil
}

// FindAvailableSessionID returns the id of the version's latest session if
// it is still running.
func (s *ContentSessionService) FindAvailableSessionID(v *content.CustomContentVersion) (string, bool) {
	if v.HasActiveSession() {
		return v.LatestSession.ID, true
	}
	return "", false
}
