// Package repositories declares the persistence interfaces the application
// services consume. Implementations live under
// internal/infrastructure/persistence; a lookup that finds nothing returns
// (nil, nil), never an error.
package repositories

import (
	"context"

	"github.com/tourloop/tourloop-go/internal/domain/content"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/domain/user"
)

// ContentRepository reads authored content and its publication state.
type ContentRepository interface {
	// ListPublishedVersions returns every version published on the
	// environment, joined with its parent content. Session info and
	// evaluator annotations are filled in later.
	ListPublishedVersions(ctx context.Context) ([]*content.CustomContentVersion, error)
	GetContent(ctx context.Context, contentID string) (*content.Content, error)
	GetVersion(ctx context.Context, versionID string) (*content.ContentVersion, error)
	GetContentOnEnvironment(ctx context.Context, contentID string) (*content.ContentOnEnvironment, error)
}

// SessionRepository reads and writes sessions, events and answers.
type SessionRepository interface {
	Create(ctx context.Context, s *session.BizSession, startEvent *session.BizEvent) error
	GetByID(ctx context.Context, id string) (*session.BizSession, error)
	// LatestByUser returns the most recent session per content id for one
	// user.
	LatestByUser(ctx context.Context, bizUserID string) (map[string]*session.BizSession, error)
	UpdateVersion(ctx context.Context, sessionID, versionID string) error
	ListEvents(ctx context.Context, sessionID string) ([]*session.BizEvent, error)
	// WithTx runs fn inside one database transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx SessionTx) error) error
}

// SessionTx is the transaction-scoped surface the event state machine runs
// against. The session is re-fetched through it so the ended check holds at
// commit time.
type SessionTx interface {
	GetSession(ctx context.Context, id string) (*session.BizSession, error)
	ListEvents(ctx context.Context, sessionID string) ([]*session.BizEvent, error)
	InsertEvent(ctx context.Context, ev *session.BizEvent) error
	// UpdateSessionProgressState writes the new state and, when progress is
	// non-nil, the new progress.
	UpdateSessionProgressState(ctx context.Context, sessionID string, progress *int, state int) error
	InsertAnswer(ctx context.Context, ans *session.BizAnswer) error
	UpdateUserData(ctx context.Context, bizUserID string, data map[string]any) error
	UpdateCompanyData(ctx context.Context, bizCompanyID string, data map[string]any) error
}

// UserRepository reads and writes end users and companies.
type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*user.BizUser, error)
	GetCompany(ctx context.Context, bizCompanyID string) (*user.BizCompany, error)
	Upsert(ctx context.Context, u *user.BizUser) error
	ListSegmentIDs(ctx context.Context, bizUserID string) ([]string, error)
	ListAttributes(ctx context.Context) ([]*user.Attribute, error)
}

// EventRepository reads project-level event definitions.
type EventRepository interface {
	GetByCodeName(ctx context.Context, codeName string) (*session.Event, error)
}
