package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
	"github.com/tourloop/tourloop-go/internal/infrastructure/caching/clientcontext"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
)

// ContentStartService runs the activation pipeline: five strategies in
// fixed order, first success wins.
type ContentStartService struct {
	versions       *ContentVersionService
	sessions       *ContentSessionService
	clientContexts *clientcontext.Store
	logger         *logging.ChanneledLogger
	tracker        *performance.Tracker
}

// NewContentStartService creates the activation pipeline service.
func NewContentStartService(
	versions *ContentVersionService,
	sessions *ContentSessionService,
	clientContexts *clientcontext.Store,
	logger *logging.ChanneledLogger,
	tracker *performance.Tracker,
) *ContentStartService {
	return &ContentStartService{
		versions:       versions,
		sessions:       sessions,
		clientContexts: clientContexts,
		logger:         logger,
		tracker:        tracker,
	}
}

// StartSingletonContent decides what single piece of content, if any, the
// SDK should start for this user right now. A failed activation is a
// result, never an error; any panic inside the pipeline converts to a
// failure result.
func (s *ContentStartService) StartSingletonContent(ctx context.Context, env EnvContext, input *ContentStartInput) (result *ContentStartResult) {
	start := time.Now()
	var marker *performance.Marker
	if s.tracker != nil {
		marker = s.tracker.StartOperation("content:start", env.GetEnvironmentID())
	}

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Content().Error("Activation pipeline panicked",
					"environmentId", env.GetEnvironmentID(), "panic", fmt.Sprintf("%v", r))
			}
			result = &ContentStartResult{Success: false, Reason: fmt.Sprintf("Error: %v", r)}
		}
		if marker != nil {
			marker.SetSuccess(result != nil && result.Success)
			marker.Complete()
		}
		if s.logger != nil {
			s.logger.Content().Info("Content start handled",
				"environmentId", env.GetEnvironmentID(),
				"userId", input.ExternalUserID,
				"success", result != nil && result.Success,
				"duration", time.Since(start))
		}
	}()

	contentType := input.ContentType
	if contentType == "" {
		contentType = content.TypeFlow
	}

	bizUser, err := env.UserRepo().GetByExternalID(ctx, input.ExternalUserID)
	if err != nil {
		return &ContentStartResult{Success: false, Reason: fmt.Sprintf("Error: %v", err)}
	}
	if bizUser == nil {
		return &ContentStartResult{Success: false, Reason: "user not found"}
	}

	clientCtx := s.resolveClientContext(ctx, env, input)

	versions, err := s.versions.EvaluateContentVersions(ctx, env, &EvaluationInput{
		BizUser:       bizUser,
		ClientContext: clientCtx,
		TypeControl:   rules.FullTypeControl(),
	})
	if err != nil {
		return &ContentStartResult{Success: false, Reason: fmt.Sprintf("Error: %v", err)}
	}

	strategies := []struct {
		name string
		fn   func() *ContentStartResult
	}{
		{"explicit-content", func() *ContentStartResult {
			return s.startExplicitContent(ctx, env, bizUser, input, versions, clientCtx)
		}},
		{"existing-session", func() *ContentStartResult {
			return s.reuseExistingSession(ctx, env, bizUser, contentType, versions, clientCtx)
		}},
		{"latest-activated", func() *ContentStartResult {
			return s.resumeLatestActivated(ctx, env, bizUser, contentType, versions, clientCtx)
		}},
		{"auto-start", func() *ContentStartResult {
			return s.autoStart(ctx, env, bizUser, contentType, versions, clientCtx)
		}},
		{"tracking-fallback", func() *ContentStartResult {
			return s.trackingFallback(contentType, versions, clientCtx)
		}},
	}

	for _, strategy := range strategies {
		if res := s.runStrategy(strategy.name, env, strategy.fn); res != nil {
			return res
		}
	}
	return &ContentStartResult{Success: false, Reason: "no content to start"}
}

// runStrategy executes one strategy behind a recover boundary. A panic
// fails only that strategy; the pipeline moves on.
func (s *ContentStartService) runStrategy(name string, env EnvContext, fn func() *ContentStartResult) (res *ContentStartResult) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Content().Error("Activation strategy panicked",
					"environmentId", env.GetEnvironmentID(), "strategy", name, "panic", fmt.Sprintf("%v", r))
			}
			res = nil
		}
	}()
	return fn()
}

// resolveClientContext stores a fresh report or falls back to the cache.
// Cache trouble behaves like an empty context.
func (s *ContentStartService) resolveClientContext(ctx context.Context, env EnvContext, input *ContentStartInput) *rules.ClientContext {
	if s.clientContexts == nil {
		return input.ClientContext
	}
	envID := env.GetEnvironmentID()
	if input.ClientContext != nil {
		if !s.clientContexts.Update(ctx, envID, input.ExternalUserID, input.ClientContext) {
			s.clientContexts.Set(ctx, envID, input.ExternalUserID, input.ClientContext)
		}
		return input.ClientContext
	}
	if entry := s.clientContexts.Get(ctx, envID, input.ExternalUserID); entry != nil {
		return entry.ClientContext
	}
	return nil
}

// Strategy 1: an explicitly requested content id. When present the request
// is definitive; a miss fails the pipeline instead of falling through.
func (s *ContentStartService) startExplicitContent(ctx context.Context, env EnvContext, bizUser *user.BizUser, input *ContentStartInput, versions []*content.CustomContentVersion, clientCtx *rules.ClientContext) *ContentStartResult {
	if input.ContentID == "" {
		return nil
	}

	v := findByContentID(versions, input.ContentID)
	if v == nil {
		return &ContentStartResult{Success: false, Reason: "content not published on this environment"}
	}
	if v.Hidden {
		return &ContentStartResult{Success: false, Reason: "content is hidden for this user"}
	}

	reason := input.StartReason
	if reason == "" {
		reason = session.StartReasonManual
	}
	res := s.processContentVersion(ctx, env, bizUser, v, "", reason, clientCtx)
	if res == nil {
		return &ContentStartResult{Success: false, Reason: "failed to start requested content"}
	}
	res.Reason = "Started by contentId"
	return res
}

// Strategy 2: a still-running session whose version is still the published
// one. Revalidated before reuse; a session that no longer passes the rules
// is reported back as invalid.
func (s *ContentStartService) reuseExistingSession(ctx context.Context, env EnvContext, bizUser *user.BizUser, contentType content.ContentType, versions []*content.CustomContentVersion, clientCtx *rules.ClientContext) *ContentStartResult {
	var candidate *content.CustomContentVersion
	for _, v := range versions {
		if v.Content.Type != contentType || !v.HasActiveSession() {
			continue
		}
		if v.LatestSession.VersionID != v.Version.ID {
			continue
		}
		if candidate == nil || v.LatestSession.CreatedAt.After(candidate.LatestSession.CreatedAt) {
			candidate = v
		}
	}
	if candidate == nil {
		return nil
	}

	if candidate.Hidden {
		return &ContentStartResult{
			Success:          false,
			Reason:           "existing session no longer passes the rules",
			InvalidSessionID: candidate.LatestSession.ID,
		}
	}
	res := s.processContentVersion(ctx, env, bizUser, candidate, candidate.LatestSession.ID, "", clientCtx)
	if res != nil {
		res.Reason = "Reused existing session"
	}
	return res
}

// Strategy 3: the most recently activated version for the type. Resumes
// its running session, repointing it at the currently published version.
func (s *ContentStartService) resumeLatestActivated(ctx context.Context, env EnvContext, bizUser *user.BizUser, contentType content.ContentType, versions []*content.CustomContentVersion, clientCtx *rules.ClientContext) *ContentStartResult {
	v := s.versions.FindLatestActivatedCustomContentVersion(versions, contentType)
	if v == nil {
		return nil
	}
	sessionID, ok := s.sessions.FindAvailableSessionID(v)
	if !ok {
		return nil
	}
	res := s.processContentVersion(ctx, env, bizUser, v, sessionID, "", clientCtx)
	if res != nil {
		res.Reason = "Resumed latest activated content"
	}
	return res
}

// Strategy 4: the highest-priority auto-start candidate.
func (s *ContentStartService) autoStart(ctx context.Context, env EnvContext, bizUser *user.BizUser, contentType content.ContentType, versions []*content.CustomContentVersion, clientCtx *rules.ClientContext) *ContentStartResult {
	eligible := s.versions.FilterAvailableAutoStartContentVersions(versions, contentType)
	if len(eligible) == 0 {
		return nil
	}
	res := s.processContentVersion(ctx, env, bizUser, eligible[0], "", session.StartReasonAutoStart, clientCtx)
	if res != nil {
		res.Reason = "Started by auto-start"
	}
	return res
}

// Strategy 5: nothing starts now; hand the SDK the conditions to watch so a
// later report can re-run the pipeline.
func (s *ContentStartService) trackingFallback(contentType content.ContentType, versions []*content.CustomContentVersion, clientCtx *rules.ClientContext) *ContentStartResult {
	typed := make([]*content.CustomContentVersion, 0, len(versions))
	for _, v := range versions {
		if v.Content.Type == contentType {
			typed = append(typed, v)
		}
	}
	return &ContentStartResult{
		Success:         true,
		Reason:          "Setup tracking conditions",
		TrackConditions: s.versions.ExtractClientTrackConditions(typed, ExtractModeBoth, clientCtx),
	}
}

// processContentVersion turns a chosen version into a start result:
// hide-check, session create-or-resolve, version persist, hide-only track
// conditions. Sequential with early return; a nil result means the
// strategy yielded nothing user-visible.
func (s *ContentStartService) processContentVersion(ctx context.Context, env EnvContext, bizUser *user.BizUser, v *content.CustomContentVersion, reuseSessionID, reason string, clientCtx *rules.ClientContext) *ContentStartResult {
	if v.Hidden {
		return nil
	}

	var sess *session.BizSession
	newSession := false

	if reuseSessionID == "" {
		created, err := s.sessions.CreateSession(ctx, env, bizUser, v, reason)
		if err != nil {
			if s.logger != nil {
				s.logger.Session().Error("Failed to create session",
					"environmentId", env.GetEnvironmentID(), "contentId", v.Content.ID, "error", err.Error())
			}
			return nil
		}
		sess = created
		newSession = true
	} else {
		sess = v.LatestSession
		if sess == nil || sess.ID != reuseSessionID {
			return nil
		}
		if sess.VersionID != v.Version.ID {
			if err := env.SessionRepo().UpdateVersion(ctx, sess.ID, v.Version.ID); err != nil {
				if s.logger != nil {
					s.logger.Session().Error("Failed to repoint session version",
						"environmentId", env.GetEnvironmentID(), "sessionId", sess.ID, "error", err.Error())
				}
				return nil
			}
		}
	}

	sdkSession := &SDKSession{
		ID:         sess.ID,
		ContentID:  v.Content.ID,
		VersionID:  v.Version.ID,
		State:      sess.State,
		Progress:   sess.Progress,
		Content:    v.Content,
		Steps:      v.Version.Steps,
		NewSession: newSession,
	}

	return &ContentStartResult{
		Success:         true,
		Session:         sdkSession,
		TrackConditions: s.versions.ExtractClientTrackConditions([]*content.CustomContentVersion{v}, ExtractModeHideOnly, clientCtx),
	}
}

func findByContentID(versions []*content.CustomContentVersion, contentID string) *content.CustomContentVersion {
	for _, v := range versions {
		if v.Content.ID == contentID {
			return v
		}
	}
	return nil
}
