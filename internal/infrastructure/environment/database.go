// Package environment provides database abstraction for multi-environment
// support.
package environment

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/tourloop/tourloop-go/pkg/config"
)

var (
	connectionPools = make(map[string]*sql.DB)
	poolMutex       = &sync.RWMutex{}
)

// Database is one environment's connection, libsql when configured and
// sqlite otherwise.
type Database struct {
	Conn          *sql.DB
	EnvironmentID string
	UseLibsql     bool
	isPooled      bool
}

// NewDatabase opens (or reuses) the connection for an environment.
func NewDatabase(cfg *Config) (*Database, error) {
	poolKey := getPoolKey(cfg)

	poolMutex.Lock()
	defer poolMutex.Unlock()

	if pooledConn, exists := connectionPools[poolKey]; exists {
		if err := pooledConn.Ping(); err == nil {
			return &Database{
				Conn:          pooledConn,
				EnvironmentID: cfg.EnvironmentID,
				UseLibsql:     cfg.LibsqlURL != "",
				isPooled:      true,
			}, nil
		}
		pooledConn.Close()
		delete(connectionPools, poolKey)
	}

	var conn *sql.DB
	var err error
	var useLibsql bool

	if cfg.LibsqlEnabled && cfg.LibsqlURL != "" && cfg.LibsqlToken != "" {
		connStr := cfg.LibsqlURL + "?authToken=" + cfg.LibsqlToken
		conn, err = sql.Open("libsql", connStr)
		if err != nil || conn.Ping() != nil {
			return nil, fmt.Errorf("environment %s degraded: libsql connection failed", cfg.EnvironmentID)
		}
		useLibsql = true
	} else {
		dbDir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		conn, err = sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}

		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite database ping failed: %w", err)
		}
	}

	conn.SetMaxOpenConns(config.DBMaxOpenConns)
	conn.SetMaxIdleConns(config.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	conn.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)

	connectionPools[poolKey] = conn

	return &Database{
		Conn:          conn,
		EnvironmentID: cfg.EnvironmentID,
		UseLibsql:     useLibsql,
		isPooled:      true,
	}, nil
}

func getPoolKey(cfg *Config) string {
	if cfg.LibsqlURL != "" {
		return fmt.Sprintf("libsql:%s", cfg.EnvironmentID)
	}
	return fmt.Sprintf("sqlite:%s", cfg.SQLitePath)
}

// Close is a no-op for pooled connections; the pool owns their lifetime.
func (db *Database) Close() error {
	if db.isPooled {
		return nil
	}
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

// GetConnectionInfo returns database connection information for logging.
func (db *Database) GetConnectionInfo() string {
	poolStatus := ""
	if db.isPooled {
		poolStatus = " (pooled)"
	}
	if db.UseLibsql {
		return fmt.Sprintf("libsql (environment: %s)%s", db.EnvironmentID, poolStatus)
	}
	return fmt.Sprintf("sqlite (environment: %s)%s", db.EnvironmentID, poolStatus)
}

// GetPoolStats reports how many pooled connections exist and respond.
func GetPoolStats() map[string]int {
	poolMutex.RLock()
	defer poolMutex.RUnlock()

	stats := make(map[string]int)
	stats["total"] = len(connectionPools)
	active := 0
	for _, conn := range connectionPools {
		if conn.Ping() == nil {
			active++
		}
	}
	stats["active"] = active
	return stats
}

// CleanupStaleConnections drops pooled connections that no longer respond.
func CleanupStaleConnections() {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	staleKeys := make([]string, 0)
	for key, conn := range connectionPools {
		if err := conn.Ping(); err != nil {
			conn.Close()
			staleKeys = append(staleKeys, key)
		}
	}
	for _, key := range staleKeys {
		delete(connectionPools, key)
	}
}
