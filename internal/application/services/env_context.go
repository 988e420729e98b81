package services

import "github.com/tourloop/tourloop-go/internal/domain/repositories"

// EnvContext is the per-request environment surface the services consume.
// Satisfied by *environment.Context; faked in tests.
type EnvContext interface {
	GetEnvironmentID() string
	ProjectID() string
	ContentRepo() repositories.ContentRepository
	SessionRepo() repositories.SessionRepository
	UserRepo() repositories.UserRepository
	EventRepo() repositories.EventRepository
}
