// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tourloop/tourloop-go/internal/application/container"
	"github.com/tourloop/tourloop-go/internal/infrastructure/environment"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/presentation/http/server"
	"github.com/tourloop/tourloop-go/pkg/config"
)

// Initialize performs the complete multi-environment startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	logger, err := logging.NewChanneledLogger(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	// Step 1: Initialize environment system
	phaseStart := time.Now()
	envManager := environment.NewManager(logger)
	logger.LogStartupPhase("environment-manager", time.Since(phaseStart), true)

	// Step 2: Load the environment registry to discover all environments
	phaseStart = time.Now()
	registry, err := environment.LoadRegistry()
	if err != nil {
		logger.LogStartupPhase("registry-load", time.Since(phaseStart), false)
		return fmt.Errorf("failed to load environment registry: %w", err)
	}
	logger.Startup().Info("Environment registry loaded", "environments", len(registry.Environments))
	logger.LogStartupPhase("registry-load", time.Since(phaseStart), true)

	// Step 3: Pre-activate every registered environment
	phaseStart = time.Now()
	if err := envManager.PreActivateAll(); err != nil {
		logger.LogStartupPhase("environment-pre-activation", time.Since(phaseStart), false)
		logger.Startup().Warn("Some environments failed pre-activation", "error", err.Error())
	} else {
		logger.LogStartupPhase("environment-pre-activation", time.Since(phaseStart), true)
	}

	// Step 4: Create the dependency injection container
	phaseStart = time.Now()
	appContainer := container.NewContainer(envManager, logger)
	logger.LogStartupPhase("container", time.Since(phaseStart), true)

	// Step 5: Start the SDK broadcaster hub
	go appContainer.Broadcaster.Run()
	logger.Startup().Info("SDK broadcaster started")

	// Step 6: Start the HTTP server
	phaseStart = time.Now()
	port := config.Port
	httpServer := server.New(port, appContainer)
	logger.LogStartupPhase("http-server", time.Since(phaseStart), true)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"activeEnvironments", envManager.ActiveCount(),
		"port", port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing environment manager...")
	if err := envManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing environment manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Environment manager closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
