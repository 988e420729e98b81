package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
)

func newStartService() *ContentStartService {
	return NewContentStartService(
		NewContentVersionService(nil, nil),
		NewContentSessionService(nil),
		nil, nil, nil,
	)
}

func seedUser(env *fakeEnv) *user.BizUser {
	u := &user.BizUser{ID: "bu1", ExternalID: "u1"}
	env.userRepo.users["u1"] = u
	return u
}

func publishedVersion(contentID, versionID string, ct content.ContentType, cfg content.VersionConfig) *content.CustomContentVersion {
	return &content.CustomContentVersion{
		Version: &content.ContentVersion{
			ID:        versionID,
			ContentID: contentID,
			Config:    cfg,
		},
		Content: &content.Content{ID: contentID, Name: contentID, Type: ct, ProjectID: "proj-1"},
	}
}

func TestStartByContentID(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{}),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
		ContentID:      "c1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Started by contentId", res.Reason)
	require.NotNil(t, res.Session)
	assert.True(t, res.Session.NewSession)
	assert.Equal(t, "c1", res.Session.ContentID)
	assert.Equal(t, "v1", res.Session.VersionID)

	require.Len(t, env.sessionRepo.sessions, 1)
	events := env.sessionRepo.events[res.Session.ID]
	require.Len(t, events, 1)
	assert.Equal(t, session.StartReasonManual, events[0].Data["reason"])
}

func TestExplicitContentBeatsAutoStart(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{}),
		publishedVersion("c2", "v2", content.TypeFlow, content.VersionConfig{AutoStartEnabled: true, Priority: 10}),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
		ContentID:      "c1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Started by contentId", res.Reason)
	require.NotNil(t, res.Session)
	assert.Equal(t, "c1", res.Session.ContentID)
}

func TestExplicitContentUnknownFails(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
		ContentID:      "missing",
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "content not published on this environment", res.Reason)
	assert.Empty(t, env.sessionRepo.sessions)
}

func TestExplicitContentHiddenFails(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	// An enabled hide tree with no conditions always matches.
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{HideRulesEnabled: true}),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
		ContentID:      "c1",
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "content is hidden for this user", res.Reason)
	assert.Empty(t, env.sessionRepo.sessions)
}

func TestUserNotFoundFails(t *testing.T) {
	env := newFakeEnv()

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "ghost",
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "user not found", res.Reason)
}

func TestReuseExistingSession(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{}),
	}
	env.sessionRepo.sessions["s1"] = &session.BizSession{
		ID: "s1", ContentID: "c1", VersionID: "v1", BizUserID: "bu1",
		State: session.StateActive, Progress: 40,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Reused existing session", res.Reason)
	require.NotNil(t, res.Session)
	assert.Equal(t, "s1", res.Session.ID)
	assert.False(t, res.Session.NewSession)
	assert.Equal(t, 40, res.Session.Progress)
	assert.Len(t, env.sessionRepo.sessions, 1)
}

func TestHiddenExistingSessionReportedInvalid(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{HideRulesEnabled: true}),
	}
	env.sessionRepo.sessions["s1"] = &session.BizSession{
		ID: "s1", ContentID: "c1", VersionID: "v1", BizUserID: "bu1",
		State:     session.StateActive,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "s1", res.InvalidSessionID)
}

func TestResumeLatestActivatedRepointsVersion(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v2", content.TypeFlow, content.VersionConfig{}),
	}
	// Running session left on an outdated version.
	env.sessionRepo.sessions["s1"] = &session.BizSession{
		ID: "s1", ContentID: "c1", VersionID: "v1", BizUserID: "bu1",
		State:     session.StateActive,
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Resumed latest activated content", res.Reason)
	require.NotNil(t, res.Session)
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, "v2", res.Session.VersionID)
	assert.Equal(t, "v2", env.sessionRepo.sessions["s1"].VersionID)
}

func TestAutoStartPicksHighestPriority(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{AutoStartEnabled: true, Priority: 1}),
		publishedVersion("c2", "v2", content.TypeFlow, content.VersionConfig{AutoStartEnabled: true, Priority: 9}),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Started by auto-start", res.Reason)
	require.NotNil(t, res.Session)
	assert.Equal(t, "c2", res.Session.ContentID)

	events := env.sessionRepo.events[res.Session.ID]
	require.Len(t, events, 1)
	assert.Equal(t, session.StartReasonAutoStart, events[0].Data["reason"])
}

func TestAutoStartOncePerUserSkipsSeen(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)
	env.contentRepo.versions = []*content.CustomContentVersion{
		publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{AutoStartEnabled: true, AutoStartOncePerUser: true}),
	}
	env.sessionRepo.sessions["s0"] = &session.BizSession{
		ID: "s0", ContentID: "c1", VersionID: "v1", BizUserID: "bu1",
		State:     session.StateEnded,
		CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Setup tracking conditions", res.Reason)
	assert.Nil(t, res.Session)
	assert.Len(t, env.sessionRepo.sessions, 1)
}

func TestTrackingFallbackCollectsClientConditions(t *testing.T) {
	env := newFakeEnv()
	seedUser(env)

	v := publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{AutoStartEnabled: true})
	v.Version.AutoStartRules = []rules.Condition{{
		ID:        "cond-page",
		Type:      rules.TypeCurrentPage,
		Operators: rules.LogicAnd,
		Data:      json.RawMessage(`{"logic":"is","value":"/pricing"}`),
	}}
	env.contentRepo.versions = []*content.CustomContentVersion{v}

	res := newStartService().StartSingletonContent(context.Background(), env, &ContentStartInput{
		ExternalUserID: "u1",
		ClientContext:  &rules.ClientContext{PageURL: "/home"},
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "Setup tracking conditions", res.Reason)
	assert.Nil(t, res.Session)
	assert.Empty(t, env.sessionRepo.sessions)

	require.Len(t, res.TrackConditions, 1)
	tc := res.TrackConditions[0]
	assert.Equal(t, "c1", tc.ContentID)
	assert.Equal(t, "v1", tc.VersionID)
	require.Len(t, tc.Conditions, 1)
	assert.Equal(t, "cond-page", tc.Conditions[0].Condition.ID)
	assert.False(t, tc.Conditions[0].Actived)
}

func TestFilterAvailableAutoStartOrdering(t *testing.T) {
	svc := NewContentVersionService(nil, nil)

	low := publishedVersion("b", "vb", content.TypeFlow, content.VersionConfig{Priority: 1})
	low.Actived = true
	tieA := publishedVersion("a", "va", content.TypeFlow, content.VersionConfig{Priority: 5})
	tieA.Actived = true
	tieC := publishedVersion("c", "vc", content.TypeFlow, content.VersionConfig{Priority: 5})
	tieC.Actived = true
	hidden := publishedVersion("d", "vd", content.TypeFlow, content.VersionConfig{Priority: 9})
	hidden.Actived = true
	hidden.Hidden = true

	eligible := svc.FilterAvailableAutoStartContentVersions(
		[]*content.CustomContentVersion{low, tieC, hidden, tieA}, content.TypeFlow)

	require.Len(t, eligible, 3)
	assert.Equal(t, "a", eligible[0].Content.ID)
	assert.Equal(t, "c", eligible[1].Content.ID)
	assert.Equal(t, "b", eligible[2].Content.ID)
}

func TestFindLatestActivatedPicksMostRecent(t *testing.T) {
	svc := NewContentVersionService(nil, nil)

	older := publishedVersion("c1", "v1", content.TypeFlow, content.VersionConfig{})
	older.LatestSession = &session.BizSession{ID: "s1", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := publishedVersion("c2", "v2", content.TypeFlow, content.VersionConfig{})
	newer.LatestSession = &session.BizSession{ID: "s2", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	otherType := publishedVersion("c3", "v3", content.TypeChecklist, content.VersionConfig{})
	otherType.LatestSession = &session.BizSession{ID: "s3", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}

	best := svc.FindLatestActivatedCustomContentVersion(
		[]*content.CustomContentVersion{older, newer, otherType}, content.TypeFlow)

	require.NotNil(t, best)
	assert.Equal(t, "c2", best.Content.ID)
}
