package clientcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/rules"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
)

// Entry is the cached record for one user in one environment.
type Entry struct {
	ClientContext *rules.ClientContext `json:"clientContext"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// Store caches client-reported state with a TTL. A backend failure is
// treated as a cache miss; callers never see an error.
type Store struct {
	backend Backend
	ttl     time.Duration
	logger  *logging.ChanneledLogger
}

// NewStore creates a store over a backend with the given TTL.
func NewStore(backend Backend, ttl time.Duration, logger *logging.ChanneledLogger) *Store {
	if logger != nil {
		logger.Cache().Info("Initializing client context store", "ttl", ttl)
	}
	return &Store{backend: backend, ttl: ttl, logger: logger}
}

func cacheKey(environmentID, externalUserID string) string {
	return fmt.Sprintf("clientcontext:%s:%s", environmentID, externalUserID)
}

// Set stores a fresh entry with a full TTL, replacing any previous one.
func (s *Store) Set(ctx context.Context, environmentID, externalUserID string, cc *rules.ClientContext) {
	start := time.Now()
	now := time.Now().UTC()
	entry := &Entry{ClientContext: cc, CreatedAt: now, UpdatedAt: now}

	if err := s.write(ctx, environmentID, externalUserID, entry); err != nil {
		if s.logger != nil {
			s.logger.Cache().Warn("Client context set failed", "environmentId", environmentID, "userId", externalUserID, "error", err.Error())
		}
		return
	}
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "set", "type", "client_context", "environmentId", environmentID, "userId", externalUserID, "duration", time.Since(start))
	}
}

// Get returns the cached entry, or nil on miss, expiry or backend failure.
func (s *Store) Get(ctx context.Context, environmentID, externalUserID string) *Entry {
	start := time.Now()
	raw, err := s.backend.Get(ctx, cacheKey(environmentID, externalUserID))
	if err != nil {
		if err != ErrCacheMiss && s.logger != nil {
			s.logger.Cache().Warn("Client context get failed", "environmentId", environmentID, "userId", externalUserID, "error", err.Error())
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		if s.logger != nil {
			s.logger.Cache().Warn("Client context entry corrupt", "environmentId", environmentID, "userId", externalUserID, "error", err.Error())
		}
		return nil
	}
	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "client_context", "environmentId", environmentID, "userId", externalUserID, "hit", true, "duration", time.Since(start))
	}
	return &entry
}

// Update replaces only the clientContext of an existing entry, refreshing
// the TTL. Returns false when no entry exists.
func (s *Store) Update(ctx context.Context, environmentID, externalUserID string, cc *rules.ClientContext) bool {
	entry := s.Get(ctx, environmentID, externalUserID)
	if entry == nil {
		if s.logger != nil {
			s.logger.Cache().Warn("Client context update skipped, no entry", "environmentId", environmentID, "userId", externalUserID)
		}
		return false
	}

	entry.ClientContext = cc
	entry.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, environmentID, externalUserID, entry); err != nil {
		if s.logger != nil {
			s.logger.Cache().Warn("Client context update failed", "environmentId", environmentID, "userId", externalUserID, "error", err.Error())
		}
		return false
	}
	return true
}

// Remove deletes the entry.
func (s *Store) Remove(ctx context.Context, environmentID, externalUserID string) {
	if err := s.backend.Delete(ctx, cacheKey(environmentID, externalUserID)); err != nil {
		if s.logger != nil {
			s.logger.Cache().Warn("Client context remove failed", "environmentId", environmentID, "userId", externalUserID, "error", err.Error())
		}
	}
}

// Has reports whether a live entry exists.
func (s *Store) Has(ctx context.Context, environmentID, externalUserID string) bool {
	return s.Get(ctx, environmentID, externalUserID) != nil
}

func (s *Store) write(ctx context.Context, environmentID, externalUserID string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, cacheKey(environmentID, externalUserID), string(raw), s.ttl)
}
