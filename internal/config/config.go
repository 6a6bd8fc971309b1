package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// SQLitePath is the default single-file backend for users and
	// conversations. DatabaseURL moves the user store to Postgres; RedisURL
	// moves the conversation store to Redis.
	SQLitePath  string
	DatabaseURL string
	RedisURL    string

	// AdminToken guards the ban/unban endpoints. Empty disables them.
	AdminToken string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/webchat.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
	}

	// In production, require a real admin token so the ban hook is usable.
	if cfg.Env == "production" && cfg.AdminToken == "" {
		panic("ADMIN_TOKEN is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
