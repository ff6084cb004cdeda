package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultJWTSecret is only acceptable for local development; main logs a
// warning when the process falls back to it.
const DefaultJWTSecret = "default-secret-change-in-production"

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:8080",
}

// Config holds application configuration, loaded once at startup.
type Config struct {
	Port       string
	Env        string
	JWTSecret  string
	LogLevel   string
	UploadsDir string

	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string

	RateLimitRPS   float64
	RateLimitBurst int

	AllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "3001"),
		Env:        getEnv("APP_ENV", "development"),
		JWTSecret:  getEnv("JWT_SECRET", DefaultJWTSecret),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		UploadsDir: getEnv("UPLOADS_DIR", "uploads"),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "aistudio_user"),
		PGPassword: getEnv("PG_PASSWORD", "aistudio_pass"),
		PGDatabase: getEnv("PG_DB", "aistudio_db"),

		AllowedOrigins: loadAllowedOrigins(),
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "1"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %q", os.Getenv("RATE_LIMIT_RPS"))
	}
	cfg.RateLimitRPS = rps

	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "5"))
	if err != nil || burst < 1 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %q", os.Getenv("RATE_LIMIT_BURST"))
	}
	cfg.RateLimitBurst = burst

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// DSN builds the Postgres connection string for GORM.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPassword, c.PGDatabase,
	)
}

// loadAllowedOrigins combines the development defaults with CLIENT_URL and
// the comma-separated ALLOWED_ORIGINS list.
func loadAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}
