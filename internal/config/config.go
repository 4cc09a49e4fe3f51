package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string

	// OpenTelemetry settings
	OTLPEndpoint string
	ServiceName  string
	Environment  string

	// Storage settings
	StoreDriver  string
	DatabasePath string
	DBDebug      bool

	// Listing settings
	PageSize       int
	CompletedLimit int
}

// Load returns configuration from environment variables with sensible
// defaults. Variables from a .env file in the working directory are loaded
// first; variables already set in the environment take precedence.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "go-todo"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		StoreDriver:    getEnv("STORE_DRIVER", DriverSQLite),
		DatabasePath:   getEnv("DB_PATH", "todo.db"),
		DBDebug:        getEnvBool("DB_DEBUG", false),
		PageSize:       getEnvInt("PAGE_SIZE", 15),
		CompletedLimit: getEnvInt("COMPLETED_LIMIT", 5),
	}

	if cfg.StoreDriver != DriverMemory {
		cfg.StoreDriver = DriverSQLite
	}
	cfg.PageSize = max(cfg.PageSize, 1)
	cfg.CompletedLimit = max(cfg.CompletedLimit, 1)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}
