package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort         int
	DatabasePath       string
	JWTSecret          string
	TokenTTL           time.Duration
	CORSOrigin         string
	CleanupSchedule    string // standard cron expression
	EventRetentionDays int
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, err
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "168h"))
	if err != nil {
		return nil, err
	}

	retention, err := strconv.Atoi(getEnv("EVENT_RETENTION_DAYS", "30"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:         port,
		DatabasePath:       getEnv("DATABASE_PATH", "./meetly.db"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           ttl,
		CORSOrigin:         getEnv("CORS_ORIGIN", "http://localhost:3000"),
		CleanupSchedule:    getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		EventRetentionDays: retention,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
