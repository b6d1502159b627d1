// Package config loads console configuration from environment variables and
// an optional YAML profile.
package config

import "os"

// Backend names for the persistence store.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	AgentURL       string
	CoordinatorID  string
	StoreBackend   string
	StateDir       string
	DatabaseURL    string
	RedisAddr      string
	AuthSigningKey string
	OTLPEndpoint   string
	ProfilePath    string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	agentURL := os.Getenv("AGENT_URL")
	if agentURL == "" {
		agentURL = "http://localhost:8765/api/call"
	}

	coordinatorID := os.Getenv("COORDINATOR_ID")
	if coordinatorID == "" {
		coordinatorID = "sentinel_coordinator"
	}

	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = BackendFile
	}

	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		stateDir = ".sentinel"
	}

	return &Config{
		Port:           port,
		LogLevel:       logLevel,
		AgentURL:       agentURL,
		CoordinatorID:  coordinatorID,
		StoreBackend:   backend,
		StateDir:       stateDir,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		AuthSigningKey: os.Getenv("AUTH_SIGNING_KEY"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		ProfilePath:    os.Getenv("PROFILE_PATH"),
	}
}
