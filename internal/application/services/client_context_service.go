package services

import (
	"context"

	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/infrastructure/caching/clientcontext"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
)

// ClientContextService fronts the TTL-backed client context cache for the
// HTTP and websocket surfaces. Cache trouble is indistinguishable from a
// miss.
type ClientContextService struct {
	store  *clientcontext.Store
	logger *logging.ChanneledLogger
}

// NewClientContextService creates the client context service.
func NewClientContextService(store *clientcontext.Store, logger *logging.ChanneledLogger) *ClientContextService {
	return &ClientContextService{store: store, logger: logger}
}

// Set stores a fresh report with a full TTL.
func (s *ClientContextService) Set(ctx context.Context, env EnvContext, externalUserID string, cc *rules.ClientContext) {
	s.store.Set(ctx, env.GetEnvironmentID(), externalUserID, cc)
}

// Get returns the cached client context, or nil when nothing usable is
// cached.
func (s *ClientContextService) Get(ctx context.Context, env EnvContext, externalUserID string) *rules.ClientContext {
	entry := s.store.Get(ctx, env.GetEnvironmentID(), externalUserID)
	if entry == nil {
		return nil
	}
	return entry.ClientContext
}

// Update replaces the client context of an existing entry, refreshing its
// TTL. Returns false when there is nothing to update.
func (s *ClientContextService) Update(ctx context.Context, env EnvContext, externalUserID string, cc *rules.ClientContext) bool {
	return s.store.Update(ctx, env.GetEnvironmentID(), externalUserID, cc)
}

// Remove drops the cached entry.
func (s *ClientContextService) Remove(ctx context.Context, env EnvContext, externalUserID string) {
	s.store.Remove(ctx, env.GetEnvironmentID(), externalUserID)
}

// Has reports whether a live entry exists.
func (s *ClientContextService) Has(ctx context.Context, env EnvContext, externalUserID string) bool {
	return s.store.Has(ctx, env.GetEnvironmentID(), externalUserID)
}
