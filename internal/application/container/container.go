// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/redis/go-redis/v9"

	"github.com/tourloop/tourloop-go/internal/application/services"
	"github.com/tourloop/tourloop-go/internal/infrastructure/caching/clientcontext"
	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/messaging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/performance"
	"github.com/tourloop/tourloop-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services (stateless singletons)
	ContentVersionService *services.ContentVersionService
	ContentSessionService *services.ContentSessionService
	ContentStartService   *services.ContentStartService
	TrackEventService     *services.TrackEventService
	ClientContextService  *services.ClientContextService

	// Infrastructure dependencies
	EnvironmentManager *environment.Manager
	ClientContexts     *clientcontext.Store
	Broadcaster        *messaging.SDKBroadcaster
	Logger             *logging.ChanneledLogger
	PerfTracker        *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(envManager *environment.Manager, logger *logging.ChanneledLogger) *Container {
	perfTracker := performance.NewTracker()
	broadcaster := messaging.NewSDKBroadcaster(logger)
	clientContexts := clientcontext.NewStore(newCacheBackend(logger), config.ClientContextTTL, logger)

	versionService := services.NewContentVersionService(logger, perfTracker)
	sessionService := services.NewContentSessionService(logger)

	return &Container{
		ContentVersionService: versionService,
		ContentSessionService: sessionService,
		ContentStartService:   services.NewContentStartService(versionService, sessionService, clientContexts, logger, perfTracker),
		TrackEventService:     services.NewTrackEventService(broadcaster, logger, perfTracker),
		ClientContextService:  services.NewClientContextService(clientContexts, logger),

		EnvironmentManager: envManager,
		ClientContexts:     clientContexts,
		Broadcaster:        broadcaster,
		Logger:             logger,
		PerfTracker:        perfTracker,
	}
}

// newCacheBackend picks redis when configured, process memory otherwise.
func newCacheBackend(logger *logging.ChanneledLogger) clientcontext.Backend {
	if config.RedisAddr == "" {
		if logger != nil {
			logger.Cache().Info("No redis configured, using in-memory client context backend")
		}
		return clientcontext.NewMemoryBackend()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if logger != nil {
		logger.Cache().Info("Using redis client context backend", "addr", config.RedisAddr)
	}
	return clientcontext.NewRedisBackend(client)
}
