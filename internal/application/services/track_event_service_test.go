package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
)

func newTrackEnv() *fakeEnv {
	env := newFakeEnv()
	seedUser(env)
	env.sessionRepo.sessions["s1"] = &session.BizSession{
		ID: "s1", ContentID: "c1", VersionID: "v1", BizUserID: "bu1",
		State:     session.StateActive,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	env.eventRepo.defs[session.EventFlowStarted] = &session.Event{
		ID: "ev-start", CodeName: session.EventFlowStarted, AttributeCodes: []string{"reason"},
	}
	env.eventRepo.defs[session.EventFlowStepSeen] = &session.Event{
		ID: "ev-step", CodeName: session.EventFlowStepSeen,
		AttributeCodes: []string{session.AttrFlowStepProgress, "step_id"},
	}
	env.eventRepo.defs[session.EventFlowCompleted] = &session.Event{
		ID: "ev-done", CodeName: session.EventFlowCompleted,
		AttributeCodes: []string{session.AttrFlowStepProgress},
	}
	env.eventRepo.defs[session.EventQuestionAnswered] = &session.Event{
		ID: "ev-answer", CodeName: session.EventQuestionAnswered,
		AttributeCodes: []string{answerFieldQuestionID, answerFieldNumber, answerFieldText, answerFieldList},
	}
	return env
}

func TestTrackEventRecordsAndFiltersData(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	event, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data: map[string]any{
			session.AttrFlowStepProgress: float64(50),
			"step_id":                    "step-2",
			"unknown_field":              "dropped",
		},
	})

	require.True(t, ok)
	require.NotNil(t, event)
	assert.Equal(t, "ev-step", event.EventID)
	assert.NotContains(t, event.Data, "unknown_field")
	assert.Equal(t, "step-2", event.Data["step_id"])

	sess := env.sessionRepo.sessions["s1"]
	assert.Equal(t, 50, sess.Progress)
	assert.Equal(t, session.StateActive, sess.State)
	assert.Len(t, env.sessionRepo.events["s1"], 1)
}

func TestTrackEventRejectsUnrecognizedPayload(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	event, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{"nothing_known": true},
	})

	assert.False(t, ok)
	assert.Nil(t, event)
	assert.Empty(t, env.sessionRepo.events["s1"])
}

func TestTrackEventRejectsWrongUser(t *testing.T) {
	env := newTrackEnv()
	env.userRepo.users["u2"] = &user.BizUser{ID: "bu2", ExternalID: "u2"}
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u2",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(10)},
	})

	assert.False(t, ok)
	assert.Empty(t, env.sessionRepo.events["s1"])
}

func TestTrackEventRejectsUndefinedEvent(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  "made_up_event",
		Data:           map[string]any{"x": 1},
	})

	assert.False(t, ok)
}

func TestTerminalEventEndsSessionAndLocksIt(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowCompleted,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(100)},
	})
	require.True(t, ok)

	sess := env.sessionRepo.sessions["s1"]
	assert.Equal(t, session.StateEnded, sess.State)
	assert.Equal(t, 100, sess.Progress)

	// An ended session accepts nothing further.
	event, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(10)},
	})
	assert.False(t, ok)
	assert.Nil(t, event)
	assert.Len(t, env.sessionRepo.events["s1"], 1)
}

func TestDuplicateStartEventRejected(t *testing.T) {
	env := newTrackEnv()
	env.sessionRepo.events["s1"] = []*session.BizEvent{{
		ID: "e0", BizUserID: "bu1", EventID: "ev-start", BizSessionID: "s1",
	}}
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStarted,
		Data:           map[string]any{"reason": session.StartReasonManual},
	})

	assert.False(t, ok)
	assert.Len(t, env.sessionRepo.events["s1"], 1)
}

func TestFirstSeenSetOnce(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(10)},
	})
	require.True(t, ok)

	u := env.userRepo.users["u1"]
	firstSeen, exists := u.Data[user.AttrFirstSeenAt]
	require.True(t, exists)
	assert.Contains(t, u.Data, user.AttrLastSeenAt)

	_, ok = svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(20)},
	})
	require.True(t, ok)

	assert.Equal(t, firstSeen, u.Data[user.AttrFirstSeenAt])
}

func TestSeenAttributesStampCompany(t *testing.T) {
	env := newTrackEnv()
	env.userRepo.users["u1"].BizCompanyID = "co1"
	env.userRepo.companies["co1"] = &user.BizCompany{ID: "co1", ExternalID: "acme"}
	svc := NewTrackEventService(nil, nil, nil)

	_, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventFlowStepSeen,
		Data:           map[string]any{session.AttrFlowStepProgress: float64(10)},
	})
	require.True(t, ok)

	company := env.userRepo.companies["co1"]
	assert.Contains(t, company.Data, user.AttrFirstSeenAt)
	assert.Contains(t, company.Data, user.AttrLastSeenAt)
}

func TestQuestionAnsweredStoresAnswer(t *testing.T) {
	env := newTrackEnv()
	svc := NewTrackEventService(nil, nil, nil)

	event, ok := svc.TrackEvent(context.Background(), env, &TrackEventInput{
		ExternalUserID: "u1",
		SessionID:      "s1",
		EventCodeName:  session.EventQuestionAnswered,
		Data: map[string]any{
			answerFieldQuestionID: "q1",
			answerFieldNumber:     float64(4),
		},
	})

	require.True(t, ok)
	require.Len(t, env.sessionRepo.answers, 1)
	answer := env.sessionRepo.answers[0]
	assert.Equal(t, event.ID, answer.BizEventID)
	assert.Equal(t, "q1", answer.QuestionID)
	require.NotNil(t, answer.NumberAnswer)
	assert.Equal(t, float64(4), *answer.NumberAnswer)
	assert.Equal(t, "c1", answer.ContentID)
	assert.Equal(t, "v1", answer.VersionID)
}
