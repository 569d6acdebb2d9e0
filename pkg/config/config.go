package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Import        ImportConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Log           LogConfig
}

type ImportConfig struct {
	Locale        string // a built-in locale tag, or "auto"
	Currency      string // overrides the locale's currency code when set
	ExcerptLength int
	CommitRate    float64 // store writes per second, 0 = unlimited
	CommitBurst   int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// Load reads configuration from environment variables. Files named in
// envFiles (default ".env") are loaded first when present; variables already
// set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Import: ImportConfig{
			Locale:        getEnv("IMPORT_LOCALE", "pt-BR"),
			Currency:      strings.ToUpper(getEnv("IMPORT_CURRENCY", "")),
			ExcerptLength: getEnvAsInt("IMPORT_EXCERPT_LENGTH", 600),
			CommitRate:    getEnvAsFloat("IMPORT_COMMIT_RATE", 0),
			CommitBurst:   getEnvAsInt("IMPORT_COMMIT_BURST", 1),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "statements"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if cfg.Import.ExcerptLength < 0 {
		return nil, errors.New("IMPORT_EXCERPT_LENGTH must not be negative")
	}
	if cfg.Import.CommitRate < 0 {
		return nil, errors.New("IMPORT_COMMIT_RATE must not be negative")
	}
	if cfg.Import.CommitRate > 0 && cfg.Import.CommitBurst < 1 {
		return nil, errors.New("IMPORT_COMMIT_BURST must be at least 1 when a commit rate is set")
	}

	return cfg, nil
}

// AutoLocale reports whether the locale should be probed per document.
func (c *ImportConfig) AutoLocale() bool {
	return strings.EqualFold(c.Locale, "auto")
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
