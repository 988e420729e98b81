// Package environment handles loading and providing per-environment
// configurations, isolating multi-environment logic from the rest of the
// application.
package environment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tourloop/tourloop-go/pkg/config"
)

// Config represents the structure of a single environment's configuration.
type Config struct {
	EnvironmentID string `json:"environmentId"`
	Name          string `json:"name"`
	ProjectID     string `json:"projectId"`
	Status        string `json:"status"`
	SecretHash    string `json:"secretHash"`
	JWTSecret     string `json:"jwtSecret"`
	LibsqlURL     string `json:"LIBSQL_DATABASE_URL,omitempty"`
	LibsqlToken   string `json:"LIBSQL_AUTH_TOKEN,omitempty"`
	LibsqlEnabled bool   `json:"LIBSQL_ENABLED,omitempty"`
	SQLitePath    string `json:"-"`
}

// Registry holds every known environment.
type Registry struct {
	Environments map[string]Info `json:"environments"`
}

// Info holds environment metadata kept in the registry file.
type Info struct {
	EnvironmentID string `json:"environmentId"`
	Name          string `json:"name"`
	Status        string `json:"status"`       // "unknown", "inactive", "active"
	DatabaseType  string `json:"databaseType"` // "libsql", "sqlite3"
}

func registryPath() string {
	return filepath.Join(config.EnvironmentsPath, "registry.json")
}

// LoadConfig loads configuration for a specific environment from its
// env.json file.
func LoadConfig(environmentID string) (*Config, error) {
	configPath := filepath.Join(config.EnvironmentsPath, environmentID, "env.json")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("environment config file not found at %s", configPath)
	}

	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read environment config file: %w", err)
	}

	var envConfig Config
	if err := json.Unmarshal(configFile, &envConfig); err != nil {
		return nil, fmt.Errorf("could not parse environment config json: %w", err)
	}

	envConfig.EnvironmentID = environmentID
	envConfig.SQLitePath = filepath.Join(config.EnvironmentsPath, environmentID, "tourloop.db")

	return &envConfig, nil
}

// SaveConfig writes an environment's env.json, creating its directory.
func SaveConfig(cfg *Config) error {
	dir := filepath.Join(config.EnvironmentsPath, cfg.EnvironmentID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create environment directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal environment config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "env.json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write environment config: %w", err)
	}
	return nil
}

// LoadRegistry loads the global environment registry, creating a default
// single-environment registry when none exists.
func LoadRegistry() (*Registry, error) {
	path := registryPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Registry{
			Environments: map[string]Info{
				"default": {
					EnvironmentID: "default",
					Name:          "Default",
					Status:        "inactive",
					DatabaseType:  "",
				},
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse environment registry: %w", err)
	}

	return &registry, nil
}

// SaveRegistry writes the registry back to disk.
func SaveRegistry(registry *Registry) error {
	path := registryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// RegisterEnvironment adds a new environment to the registry when absent.
func RegisterEnvironment(environmentID, name string) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	if _, exists := registry.Environments[environmentID]; exists {
		return nil
	}
	if len(registry.Environments) >= config.MaxEnvironments {
		return fmt.Errorf("environment limit reached (%d)", config.MaxEnvironments)
	}

	registry.Environments[environmentID] = Info{
		EnvironmentID: environmentID,
		Name:          name,
		Status:        "inactive",
		DatabaseType:  "",
	}
	return SaveRegistry(registry)
}
