// Package environment manages environment-specific configurations and
// context, isolating multi-environment logic from the rest of the
// application.
package environment

import (
	"context"
	"fmt"
	"sync"

	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
)

// Manager coordinates environment lookup and context creation.
type Manager struct {
	contexts       map[string]*Context
	contextMutexes sync.Map // Per-environment mutexes for fine-grained locking
	globalMutex    sync.RWMutex
	logger         *logging.ChanneledLogger
}

// NewManager creates and initializes a new environment manager.
func NewManager(logger *logging.ChanneledLogger) *Manager {
	return &Manager{
		contexts: make(map[string]*Context),
		logger:   logger,
	}
}

// GetContext creates or retrieves the context for an environment id.
func (m *Manager) GetContext(environmentID string) (*Context, error) {
	if environmentID == "" {
		return nil, fmt.Errorf("environment id is required")
	}

	m.globalMutex.RLock()
	if ctx, exists := m.contexts[environmentID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	envMutexInterface, _ := m.contextMutexes.LoadOrStore(environmentID, &sync.Mutex{})
	envMutex := envMutexInterface.(*sync.Mutex)

	envMutex.Lock()
	defer envMutex.Unlock()

	m.globalMutex.RLock()
	if ctx, exists := m.contexts[environmentID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	return m.createContext(environmentID)
}

// createContext creates a new environment context.
func (m *Manager) createContext(environmentID string) (*Context, error) {
	cfg, err := LoadConfig(environmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	ctx := &Context{
		EnvironmentID: environmentID,
		Config:        cfg,
		Database:      db,
		Status:        cfg.Status,
		Logger:        m.logger,
	}

	if err := ctx.db().EnsureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure schema for environment %s: %w", environmentID, err)
	}

	m.globalMutex.Lock()
	m.contexts[environmentID] = ctx
	m.globalMutex.Unlock()

	if m.logger != nil {
		m.logger.Environment().Info("Environment context created",
			"environmentId", environmentID, "database", ctx.GetDatabaseInfo())
	}
	return ctx, nil
}

// PreActivateAll activates every environment in the registry during startup.
func (m *Manager) PreActivateAll() error {
	registry, err := LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load environment registry for pre-activation: %w", err)
	}

	if len(registry.Environments) == 0 {
		return nil
	}

	var failed []string
	for environmentID := range registry.Environments {
		ctx, err := m.createContext(environmentID)
		if err != nil {
			if m.logger != nil {
				m.logger.Environment().Error("Environment pre-activation failed",
					"environmentId", environmentID, "error", err.Error())
			}
			failed = append(failed, environmentID)
			continue
		}

		if err := ctx.Database.Conn.Ping(); err != nil {
			failed = append(failed, environmentID)
			continue
		}

		dbType := "sqlite3"
		if ctx.Database.UseLibsql {
			dbType = "libsql"
		}
		info := registry.Environments[environmentID]
		info.Status = "active"
		info.DatabaseType = dbType
		registry.Environments[environmentID] = info
		ctx.Status = "active"
	}

	if err := SaveRegistry(registry); err != nil {
		return fmt.Errorf("failed to persist registry after pre-activation: %w", err)
	}

	if len(failed) > 0 {
		return fmt.Errorf("pre-activation failed for environments: %v", failed)
	}
	return nil
}

// ActiveCount returns how many environments hold a live context.
func (m *Manager) ActiveCount() int {
	m.globalMutex.RLock()
	defer m.globalMutex.RUnlock()
	return len(m.contexts)
}

// GetLogger returns the logger for middleware access.
func (m *Manager) GetLogger() *logging.ChanneledLogger {
	return m.logger
}

// Close cleans up all environment contexts.
func (m *Manager) Close() error {
	m.globalMutex.Lock()
	defer m.globalMutex.Unlock()

	for _, ctx := range m.contexts {
		if err := ctx.Close(); err != nil {
			continue
		}
	}

	m.contexts = make(map[string]*Context)
	return nil
}
