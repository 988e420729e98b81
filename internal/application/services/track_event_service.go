package services

import (
	"context"
	"errors"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/repositories"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
	"github.com/tourloop/tourloop-go/internal/infrastructure/messaging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/internal/infrastructure/security"
)

// errEventRejected aborts the tracking transaction without surfacing an
// error to the caller; every rejection collapses to (nil, false).
var errEventRejected = errors.New("event rejected")

// TrackEventService is the transactional event state machine. TrackEvent
// either appends exactly one event (plus its side effects) or changes
// nothing.
type TrackEventService struct {
	broadcaster *messaging.SDKBroadcaster
	logger      *logging.ChanneledLogger
	tracker     *performance.Tracker
}

// NewTrackEventService creates the event tracking service.
func NewTrackEventService(broadcaster *messaging.SDKBroadcaster, logger *logging.ChanneledLogger, tracker *performance.Tracker) *TrackEventService {
	return &TrackEventService{broadcaster: broadcaster, logger: logger, tracker: tracker}
}

// TrackEvent records one event against a session. The second return is
// false for every rejection: unknown user, missing or ended session,
// undefined event, or a payload with no recognized fields. The session's
// ended state is re-checked inside the transaction so a concurrent
// terminal event cannot be raced.
func (s *TrackEventService) TrackEvent(ctx context.Context, env EnvContext, input *TrackEventInput) (*session.BizEvent, bool) {
	start := time.Now()
	var marker *performance.Marker
	if s.tracker != nil {
		marker = s.tracker.StartOperation("event:track", env.GetEnvironmentID())
	}
	accepted := false
	defer func() {
		if marker != nil {
			marker.SetSuccess(accepted)
			marker.Complete()
		}
		if s.logger != nil {
			s.logger.Event().Info("Track event handled",
				"environmentId", env.GetEnvironmentID(),
				"event", input.EventCodeName,
				"accepted", accepted,
				"duration", time.Since(start))
		}
	}()

	bizUser, err := env.UserRepo().GetByExternalID(ctx, input.ExternalUserID)
	if err != nil || bizUser == nil {
		return nil, false
	}

	sess, err := env.SessionRepo().GetByID(ctx, input.SessionID)
	if err != nil || sess == nil || sess.Ended() || sess.BizUserID != bizUser.ID {
		return nil, false
	}

	eventDef, err := env.EventRepo().GetByCodeName(ctx, input.EventCodeName)
	if err != nil || eventDef == nil {
		return nil, false
	}

	filtered := filterEventData(eventDef, input.Data)
	if len(filtered) == 0 {
		return nil, false
	}

	var company *user.BizCompany
	if bizUser.BizCompanyID != "" {
		company, _ = env.UserRepo().GetCompany(ctx, bizUser.BizCompanyID)
	}

	event := &session.BizEvent{
		ID:           security.GenerateULID(),
		BizUserID:    bizUser.ID,
		EventID:      eventDef.ID,
		BizSessionID: sess.ID,
		Data:         filtered,
		CreatedAt:    time.Now().UTC(),
	}

	err = env.SessionRepo().WithTx(ctx, func(tx repositories.SessionTx) error {
		// Re-fetch inside the transaction: a concurrent terminal event may
		// have ended the session since the pre-check.
		current, err := tx.GetSession(ctx, sess.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Ended() {
			return errEventRejected
		}

		history, err := tx.ListEvents(ctx, sess.ID)
		if err != nil {
			return err
		}
		if !isValidEvent(history, eventDef, input.EventCodeName) {
			return errEventRejected
		}

		if err := s.updateSeenAttributes(ctx, tx, bizUser, company); err != nil {
			return err
		}

		if err := tx.InsertEvent(ctx, event); err != nil {
			return err
		}

		newState := session.StateForEvent(input.EventCodeName)
		progress, hasProgress := session.ProgressFromData(filtered)
		if hasProgress {
			if err := tx.UpdateSessionProgressState(ctx, sess.ID, &progress, newState); err != nil {
				return err
			}
		} else if newState != current.State {
			if err := tx.UpdateSessionProgressState(ctx, sess.ID, nil, newState); err != nil {
				return err
			}
		}

		if input.EventCodeName == session.EventQuestionAnswered {
			if err := tx.InsertAnswer(ctx, buildAnswer(event, sess, filtered)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errEventRejected) && s.logger != nil {
			s.logger.Event().Error("Track event transaction failed",
				"environmentId", env.GetEnvironmentID(), "sessionId", sess.ID, "error", err.Error())
		}
		return nil, false
	}

	accepted = true
	s.publish(env, input.ExternalUserID, event)
	return event, true
}

// publish pushes the accepted event to the user's live SDK connections.
// Best effort only; the event is already committed.
func (s *TrackEventService) publish(env EnvContext, externalUserID string, event *session.BizEvent) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.SendToUser(env.GetEnvironmentID(), externalUserID, messaging.Message{
		Type:    messaging.MessageEventTracked,
		Payload: event,
	})
}

// updateSeenAttributes stamps first/last seen on the user and, when
// present, the company. First-seen is written once and never overwritten.
func (s *TrackEventService) updateSeenAttributes(ctx context.Context, tx repositories.SessionTx, bizUser *user.BizUser, company *user.BizCompany) error {
	now := time.Now().UTC()

	data, changed := user.ApplySeenAttributes(bizUser.Data, now)
	bizUser.Data = data
	if changed {
		if err := tx.UpdateUserData(ctx, bizUser.ID, data); err != nil {
			return err
		}
	}

	if company != nil {
		companyData, changed := user.ApplySeenAttributes(company.Data, now)
		company.Data = companyData
		if changed {
			if err := tx.UpdateCompanyData(ctx, company.ID, companyData); err != nil {
				return err
			}
		}
	}
	return nil
}

// filterEventData drops every payload field the event's schema does not
// declare.
func filterEventData(def *session.Event, data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(def.AttributeCodes))
	for _, code := range def.AttributeCodes {
		allowed[code] = true
	}

	filtered := make(map[string]any)
	for key, value := range data {
		if allowed[key] {
			filtered[key] = value
		}
	}
	return filtered
}

// isValidEvent rejects events that contradict the session's history, such
// as a second start event.
func isValidEvent(history []*session.BizEvent, def *session.Event, codeName string) bool {
	if session.IsStartEvent(codeName) {
		for _, ev := range history {
			if ev.EventID == def.ID {
				return false
			}
		}
	}
	return true
}

// buildAnswer shapes the structured answer row for a question_answered
// event.
func buildAnswer(event *session.BizEvent, sess *session.BizSession, data map[string]any) *session.BizAnswer {
	answer := &session.BizAnswer{
		ID:         security.GenerateULID(),
		BizEventID: event.ID,
		ContentID:  sess.ContentID,
		VersionID:  sess.VersionID,
		CreatedAt:  event.CreatedAt,
	}
	if q, ok := data[answerFieldQuestionID].(string); ok {
		answer.QuestionID = q
	}
	if n, ok := data[answerFieldNumber].(float64); ok {
		answer.NumberAnswer = &n
	}
	if t, ok := data[answerFieldText].(string); ok {
		answer.TextAnswer = &t
	}
	if list, ok := data[answerFieldList].([]any); ok {
		for _, item := range list {
			if str, ok := item.(string); ok {
				answer.ListAnswer = append(answer.ListAnswer, str)
			}
		}
	}
	return answer
}
