// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/application/container"
	"github.com/tourloop/tourloop-go/internal/presentation/http/handlers"
	"github.com/tourloop/tourloop-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency
// injection.
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	contentHandlers := handlers.NewContentHandlers(c.ContentStartService, c.Logger, c.PerfTracker)
	eventHandlers := handlers.NewEventHandlers(c.TrackEventService, c.Logger, c.PerfTracker)
	clientContextHandlers := handlers.NewClientContextHandlers(c.ClientContextService, c.Logger, c.PerfTracker)
	socketHandlers := handlers.NewSocketHandlers(c.Broadcaster, c.ContentStartService, c.Logger)
	environmentHandlers := handlers.NewEnvironmentHandlers(c.EnvironmentManager, c.Logger, c.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(c.EnvironmentManager, c.Broadcaster, c.PerfTracker)

	r.GET("/health", healthHandlers.GetHealth)

	// Provisioning routes establish the environment, so they sit outside the
	// environment middleware.
	provisioning := r.Group("/api/v1/environment")
	{
		provisioning.POST("/register", environmentHandlers.PostRegisterEnvironment)
		provisioning.POST("/token", environmentHandlers.PostEnvironmentToken)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.EnvironmentMiddleware(c.EnvironmentManager, c.PerfTracker))
	{
		api.GET("/health", healthHandlers.GetEnvironmentHealth)

		sdk := api.Group("")
		sdk.Use(middleware.AuthMiddleware())
		{
			sdk.POST("/content/start", contentHandlers.PostContentStart)
			sdk.POST("/events/track", eventHandlers.PostTrackEvent)

			sdk.POST("/client-context", clientContextHandlers.PostClientContext)
			sdk.GET("/client-context", clientContextHandlers.GetClientContext)
			sdk.DELETE("/client-context", clientContextHandlers.DeleteClientContext)

			sdk.GET("/ws", socketHandlers.GetSocket)
		}
	}

	return r
}
