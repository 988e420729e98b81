package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/repositories"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
)

// fakeEnv is an in-memory EnvContext for service tests.
type fakeEnv struct {
	contentRepo *fakeContentRepo
	sessionRepo *fakeSessionRepo
	userRepo    *fakeUserRepo
	eventRepo   *fakeEventRepo
}

func newFakeEnv() *fakeEnv {
	env := &fakeEnv{
		contentRepo: &fakeContentRepo{},
		userRepo: &fakeUserRepo{
			users:     map[string]*user.BizUser{},
			companies: map[string]*user.BizCompany{},
			segments:  map[string][]string{},
		},
		eventRepo: &fakeEventRepo{defs: map[string]*session.Event{}},
	}
	env.sessionRepo = &fakeSessionRepo{
		env:      env,
		sessions: map[string]*session.BizSession{},
		events:   map[string][]*session.BizEvent{},
	}
	return env
}

func (e *fakeEnv) GetEnvironmentID() string                    { return "env-test" }
func (e *fakeEnv) ProjectID() string                           { return "proj-1" }
func (e *fakeEnv) ContentRepo() repositories.ContentRepository { return e.contentRepo }
func (e *fakeEnv) SessionRepo() repositories.SessionRepository { return e.sessionRepo }
func (e *fakeEnv) UserRepo() repositories.UserRepository       { return e.userRepo }
func (e *fakeEnv) EventRepo() repositories.EventRepository     { return e.eventRepo }

// fakeContentRepo serves a fixed set of published versions. Fresh view
// structs are returned on every call because the evaluator annotates them.
type fakeContentRepo struct {
	versions []*content.CustomContentVersion
}

func (r *fakeContentRepo) ListPublishedVersions(context.Context) ([]*content.CustomContentVersion, error) {
	out := make([]*content.CustomContentVersion, 0, len(r.versions))
	for _, v := range r.versions {
		out = append(out, &content.CustomContentVersion{Version: v.Version, Content: v.Content})
	}
	return out, nil
}

func (r *fakeContentRepo) GetContent(_ context.Context, contentID string) (*content.Content, error) {
	for _, v := range r.versions {
		if v.Content.ID == contentID {
			return v.Content, nil
		}
	}
	return nil, nil
}

func (r *fakeContentRepo) GetVersion(_ context.Context, versionID string) (*content.ContentVersion, error) {
	for _, v := range r.versions {
		if v.Version.ID == versionID {
			return v.Version, nil
		}
	}
	return nil, nil
}

func (r *fakeContentRepo) GetContentOnEnvironment(_ context.Context, contentID string) (*content.ContentOnEnvironment, error) {
	for _, v := range r.versions {
		if v.Content.ID == contentID {
			return &content.ContentOnEnvironment{
				ContentID:          contentID,
				EnvironmentID:      "env-test",
				PublishedVersionID: v.Version.ID,
				Published:          true,
			}, nil
		}
	}
	return nil, nil
}

// fakeSessionRepo keeps sessions and events in maps. WithTx applies writes
// directly; rollback fidelity is covered by the SQL repository tests.
type fakeSessionRepo struct {
	env      *fakeEnv
	sessions map[string]*session.BizSession
	events   map[string][]*session.BizEvent
	answers  []*session.BizAnswer
	seq      int
}

func (r *fakeSessionRepo) Create(_ context.Context, s *session.BizSession, startEvent *session.BizEvent) error {
	if s.CreatedAt.IsZero() {
		r.seq++
		s.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Minute)
	}
	r.sessions[s.ID] = s
	if startEvent != nil {
		r.events[s.ID] = append(r.events[s.ID], startEvent)
	}
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*session.BizSession, error) {
	return r.sessions[id], nil
}

func (r *fakeSessionRepo) LatestByUser(_ context.Context, bizUserID string) (map[string]*session.BizSession, error) {
	latest := map[string]*session.BizSession{}
	for _, s := range r.sessions {
		if s.BizUserID != bizUserID {
			continue
		}
		if prev, ok := latest[s.ContentID]; !ok || s.CreatedAt.After(prev.CreatedAt) {
			latest[s.ContentID] = s
		}
	}
	return latest, nil
}

func (r *fakeSessionRepo) UpdateVersion(_ context.Context, sessionID, versionID string) error {
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.VersionID = versionID
	return nil
}

func (r *fakeSessionRepo) ListEvents(_ context.Context, sessionID string) ([]*session.BizEvent, error) {
	return r.events[sessionID], nil
}

func (r *fakeSessionRepo) WithTx(_ context.Context, fn func(tx repositories.SessionTx) error) error {
	return fn(&fakeSessionTx{repo: r})
}

type fakeSessionTx struct {
	repo *fakeSessionRepo
}

func (t *fakeSessionTx) GetSession(_ context.Context, id string) (*session.BizSession, error) {
	return t.repo.sessions[id], nil
}

func (t *fakeSessionTx) ListEvents(_ context.Context, sessionID string) ([]*session.BizEvent, error) {
	return t.repo.events[sessionID], nil
}

func (t *fakeSessionTx) InsertEvent(_ context.Context, ev *session.BizEvent) error {
	t.repo.events[ev.BizSessionID] = append(t.repo.events[ev.BizSessionID], ev)
	return nil
}

func (t *fakeSessionTx) UpdateSessionProgressState(_ context.Context, sessionID string, progress *int, state int) error {
	s, ok := t.repo.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if progress != nil {
		s.Progress = *progress
	}
	s.State = state
	return nil
}

func (t *fakeSessionTx) InsertAnswer(_ context.Context, ans *session.BizAnswer) error {
	t.repo.answers = append(t.repo.answers, ans)
	return nil
}

func (t *fakeSessionTx) UpdateUserData(_ context.Context, bizUserID string, data map[string]any) error {
	for _, u := range t.repo.env.userRepo.users {
		if u.ID == bizUserID {
			u.Data = data
			return nil
		}
	}
	return fmt.Errorf("user %s not found", bizUserID)
}

func (t *fakeSessionTx) UpdateCompanyData(_ context.Context, bizCompanyID string, data map[string]any) error {
	c, ok := t.repo.env.userRepo.companies[bizCompanyID]
	if !ok {
		return fmt.Errorf("company %s not found", bizCompanyID)
	}
	c.Data = data
	return nil
}

// fakeUserRepo keeps users keyed by external id.
type fakeUserRepo struct {
	users      map[string]*user.BizUser
	companies  map[string]*user.BizCompany
	segments   map[string][]string
	attributes []*user.Attribute
}

func (r *fakeUserRepo) GetByExternalID(_ context.Context, externalID string) (*user.BizUser, error) {
	return r.users[externalID], nil
}

func (r *fakeUserRepo) GetCompany(_ context.Context, bizCompanyID string) (*user.BizCompany, error) {
	return r.companies[bizCompanyID], nil
}

func (r *fakeUserRepo) Upsert(_ context.Context, u *user.BizUser) error {
	r.users[u.ExternalID] = u
	return nil
}

func (r *fakeUserRepo) ListSegmentIDs(_ context.Context, bizUserID string) ([]string, error) {
	return r.segments[bizUserID], nil
}

func (r *fakeUserRepo) ListAttributes(context.Context) ([]*user.Attribute, error) {
	return r.attributes, nil
}

// fakeEventRepo serves event definitions by code name.
type fakeEventRepo struct {
	defs map[string]*session.Event
}

func (r *fakeEventRepo) GetByCodeName(_ context.Context, codeName string) (*session.Event, error) {
	return r.defs[codeName], nil
}
