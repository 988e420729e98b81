package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
)

// ExtractMode selects which rule trees feed track-condition extraction.
type ExtractMode int

const (
	// ExtractModeBoth walks auto-start and hide trees.
	ExtractModeBoth ExtractMode = iota
	// ExtractModeHideOnly walks hide trees only.
	ExtractModeHideOnly
)

// EvaluationInput carries the per-user state the evaluator consults.
type EvaluationInput struct {
	BizUser        *user.BizUser
	ClientContext  *rules.ClientContext
	ActivatedIDs   map[string]bool
	DeactivatedIDs map[string]bool
	TypeControl    rules.TypeControl
}

// ContentVersionService joins published versions with per-user state and
// annotates them with auto-start eligibility and hide status.
type ContentVersionService struct {
	logger  *logging.ChanneledLogger
	tracker *performance.Tracker
}

// NewContentVersionService creates the filter/evaluator service.
func NewContentVersionService(logger *logging.ChanneledLogger, tracker *performance.Tracker) *ContentVersionService {
	return &ContentVersionService{logger: logger, tracker: tracker}
}

// EvaluateContentVersions builds the annotated CustomContentVersion list for
// one user: every version published on the environment, joined with the
// user's latest sessions, with rule trees evaluated against attributes,
// segments, content states and the cached client context.
func (s *ContentVersionService) EvaluateContentVersions(ctx context.Context, env EnvContext, input *EvaluationInput) ([]*content.CustomContentVersion, error) {
	start := time.Now()
	marker := s.startMarker("content:evaluate_versions", env)

	versions, err := env.ContentRepo().ListPublishedVersions(ctx)
	if err != nil {
		s.completeMarker(marker, err)
		return nil, fmt.Errorf("failed to list published versions: %w", err)
	}

	evalCtx, err := s.buildEvalContext(ctx, env, input, versions)
	if err != nil {
		s.completeMarker(marker, err)
		return nil, err
	}

	for _, v := range versions {
		if input.BizUser != nil {
			// LatestByUser already keyed the sessions by content id.
			v.LatestSession = evalCtx.latestSessions[v.Content.ID]
		}
		v.Actived = v.Version.Config.AutoStartEnabled &&
			rules.Evaluate(v.Version.AutoStartRules, evalCtx.rules)
		v.Hidden = v.Version.Config.HideRulesEnabled &&
			rules.Evaluate(v.Version.HideRules, evalCtx.rules)
	}

	s.completeMarker(marker, nil)
	if s.logger != nil {
		s.logger.Content().Debug("Evaluated content versions",
			"environmentId", env.GetEnvironmentID(),
			"versions", len(versions),
			"duration", time.Since(start))
	}
	return versions, nil
}

// evaluationState bundles the rule context with the session index it was
// built from.
type evaluationState struct {
	rules          *rules.EvalContext
	latestSessions map[string]*session.BizSession
}

// buildEvalContext assembles attributes, segments, content states and the
// client context into one EvalContext.
func (s *ContentVersionService) buildEvalContext(ctx context.Context, env EnvContext, input *EvaluationInput, versions []*content.CustomContentVersion) (*evaluationState, error) {
	evalCtx := &rules.EvalContext{
		ActivatedIDs:   input.ActivatedIDs,
		DeactivatedIDs: input.DeactivatedIDs,
		Client:         input.ClientContext,
		TypeControl:    input.TypeControl,
	}
	state := &evaluationState{rules: evalCtx, latestSessions: map[string]*session.BizSession{}}

	if input.BizUser == nil {
		return state, nil
	}

	attrs, err := env.UserRepo().ListAttributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes: %w", err)
	}
	evalCtx.UserAttributes = resolveAttributes(attrs, input.BizUser.Data)

	if input.BizUser.BizCompanyID != "" {
		company, err := env.UserRepo().GetCompany(ctx, input.BizUser.BizCompanyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load company: %w", err)
		}
		if company != nil {
			evalCtx.CompanyAttributes = resolveAttributes(attrs, company.Data)
		}
	}

	segmentIDs, err := env.UserRepo().ListSegmentIDs(ctx, input.BizUser.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment memberships: %w", err)
	}
	evalCtx.Segments = make(map[string]bool, len(segmentIDs))
	for _, id := range segmentIDs {
		evalCtx.Segments[id] = true
	}

	latest, err := env.SessionRepo().LatestByUser(ctx, input.BizUser.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sessions: %w", err)
	}
	state.latestSessions = latest

	evalCtx.ContentStates = make(map[string]rules.ContentState, len(versions))
	for _, v := range versions {
		sess := latest[v.Content.ID]
		evalCtx.ContentStates[v.Content.ID] = rules.ContentState{
			Seen:      sess != nil,
			Completed: sess.Ended(),
			Actived:   sess != nil && !sess.Ended(),
		}
	}
	return state, nil
}

// resolveAttributes rekeys an attribute blob (stored by code name) by
// attribute id, which is what rule payloads reference.
func resolveAttributes(defs []*user.Attribute, data map[string]any) map[string]any {
	resolved := make(map[string]any, len(data))
	for _, def := range defs {
		if value, exists := data[def.CodeName]; exists {
			resolved[def.ID] = value
		}
	}
	return resolved
}

// FindLatestActivatedCustomContentVersion returns the version of the given
// type whose latest session is most recent, or nil when the user has no
// sessions for that type. Hidden versions are excluded.
func (s *ContentVersionService) FindLatestActivatedCustomContentVersion(versions []*content.CustomContentVersion, contentType content.ContentType) *content.CustomContentVersion {
	var best *content.CustomContentVersion
	for _, v := range versions {
		if v.Content.Type != contentType || v.LatestSession == nil || v.Hidden {
			continue
		}
		if best == nil || v.LatestSession.CreatedAt.After(best.LatestSession.CreatedAt) {
			best = v
		}
	}
	return best
}

// FilterAvailableAutoStartContentVersions returns the versions eligible for
// auto start, highest priority first; ties break on content id so the order
// is deterministic.
func (s *ContentVersionService) FilterAvailableAutoStartContentVersions(versions []*content.CustomContentVersion, contentType content.ContentType) []*content.CustomContentVersion {
	var eligible []*content.CustomContentVersion
	for _, v := range versions {
		if v.Content.Type != contentType {
			continue
		}
		if !v.Actived || v.Hidden {
			continue
		}
		if v.HasActiveSession() {
			continue
		}
		if v.Version.Config.AutoStartOncePerUser && v.HasSeen() {
			continue
		}
		eligible = append(eligible, v)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		pi, pj := eligible[i].Version.Config.Priority, eligible[j].Version.Config.Priority
		if pi != pj {
			return pi > pj
		}
		return eligible[i].Content.ID < eligible[j].Content.ID
	})
	return eligible
}

// ExtractClientTrackConditions collects, per version, the client-side
// conditions the SDK must keep watching, each annotated with its current
// truth against the known client context.
func (s *ContentVersionService) ExtractClientTrackConditions(versions []*content.CustomContentVersion, mode ExtractMode, clientCtx *rules.ClientContext) []ContentTrackConditions {
	evalCtx := &rules.EvalContext{Client: clientCtx, TypeControl: rules.FullTypeControl()}

	var out []ContentTrackConditions
	for _, v := range versions {
		var trees []rules.Condition
		if mode == ExtractModeBoth {
			trees = append(trees, rules.CollectClientConditions(v.Version.AutoStartRules)...)
		}
		trees = append(trees, rules.CollectClientConditions(v.Version.HideRules)...)
		if len(trees) == 0 {
			continue
		}

		tracked := make([]rules.TrackCondition, 0, len(trees))
		for _, cond := range trees {
			tracked = append(tracked, rules.TrackCondition{
				Condition: cond,
				Actived:   rules.EvaluateCondition(&cond, evalCtx),
			})
		}
		out = append(out, ContentTrackConditions{
			ContentID:  v.Content.ID,
			VersionID:  v.Version.ID,
			Conditions: tracked,
		})
	}
	return out
}

func (s *ContentVersionService) startMarker(operation string, env EnvContext) *performance.Marker {
	if s.tracker == nil {
		return nil
	}
	return s.tracker.StartOperation(operation, env.GetEnvironmentID())
}

func (s *ContentVersionService) completeMarker(marker *performance.Marker, err error) {
	if marker == nil {
		return
	}
	marker.SetError(err)
	marker.Complete()
}
