// Package environment provides environment context management for
// multi-environment support.
package environment

import (
	"github.com/tourloop/tourloop-go/internal/domain/repositories"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/analytics"
	persistenceContent "github.com/tourloop/tourloop-go/internal/infrastructure/persistence/content"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
	persistenceSession "github.com/tourloop/tourloop-go/internal/infrastructure/persistence/session"
	persistenceUser "github.com/tourloop/tourloop-go/internal/infrastructure/persistence/user"
)

// Context holds environment-specific request context.
type Context struct {
	EnvironmentID string
	Config        *Config
	Database      *Database
	Status        string
	Logger        *logging.ChanneledLogger
}

// Close cleans up the environment context.
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// GetEnvironmentID returns the environment id for this context.
func (ctx *Context) GetEnvironmentID() string {
	return ctx.EnvironmentID
}

// ProjectID returns the project this environment belongs to.
func (ctx *Context) ProjectID() string {
	if ctx.Config != nil {
		return ctx.Config.ProjectID
	}
	return ""
}

// IsActive returns true if the environment is active.
func (ctx *Context) IsActive() bool {
	return ctx.Status == "active"
}

// GetDatabaseInfo returns database connection information for logging.
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}

// =============================================================================
// Repository Factory Methods
// =============================================================================

func (ctx *Context) db() *database.DB {
	return &database.DB{DB: ctx.Database.Conn}
}

// ContentRepo returns a content repository instance.
func (ctx *Context) ContentRepo() repositories.ContentRepository {
	return persistenceContent.NewSQLContentRepository(ctx.db(), ctx.EnvironmentID, ctx.Logger)
}

// SessionRepo returns a session repository instance.
func (ctx *Context) SessionRepo() repositories.SessionRepository {
	return persistenceSession.NewSQLSessionRepository(ctx.db(), ctx.EnvironmentID, ctx.Logger)
}

// UserRepo returns a user repository instance.
func (ctx *Context) UserRepo() repositories.UserRepository {
	return persistenceUser.NewSQLUserRepository(ctx.db(), ctx.EnvironmentID, ctx.Logger)
}

// EventRepo returns an event definition repository instance.
func (ctx *Context) EventRepo() repositories.EventRepository {
	return analytics.NewSQLEventRepository(ctx.db())
}
