// Package config provides centralized default values for Tourloop
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err != nil {
			// .env file is optional
			return
		}
		log.Println("Loading configuration overrides from .env file...")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Environment Registry
	EnvironmentsPath string
	MaxEnvironments  int

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Client Context Cache
	ClientContextTTL time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// WebSocket Configuration
	MaxSocketsPerEnvironment int
	SocketWriteTimeout       time.Duration
	SocketPongTimeout        time.Duration
	SocketPingInterval       time.Duration

	// Access Tokens
	TokenTTL time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Environment Registry
	EnvironmentsPath = getEnvString("ENVIRONMENTS_PATH", "environments")
	MaxEnvironments = getEnvInt("MAX_ENVIRONMENTS", 25)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 50*time.Millisecond)

	// Client Context Cache
	ClientContextTTL = time.Duration(getEnvInt("CLIENT_CONTEXT_TTL_HOURS", 24)) * time.Hour
	RedisAddr = getEnvString("REDIS_ADDR", "")
	RedisPassword = getEnvString("REDIS_PASSWORD", "")
	RedisDB = getEnvInt("REDIS_DB", 0)

	// WebSocket Configuration
	MaxSocketsPerEnvironment = getEnvInt("MAX_SOCKETS_PER_ENVIRONMENT", 5000)
	SocketWriteTimeout = getEnvDuration("SOCKET_WRITE_TIMEOUT", 10*time.Second)
	SocketPongTimeout = getEnvDuration("SOCKET_PONG_TIMEOUT", 60*time.Second)
	SocketPingInterval = getEnvDuration("SOCKET_PING_INTERVAL", 50*time.Second)

	// Access Tokens
	TokenTTL = time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour
}
