package config

import (
	"os"
	"strconv"

	"lassoc/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Data     DataConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DataConfig holds data input settings
type DataConfig struct {
	// DataFile is the CSV or spreadsheet file loaded at startup. Optional for
	// the API server, which also accepts uploads.
	DataFile string
}

// AnalysisConfig holds default analysis parameters
type AnalysisConfig struct {
	Iterations int
	Seed       int64
	Workers    int
	MaxCells   int
	Adjustment string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		Data: DataConfig{
			DataFile: getEnvOrDefault("DATA_FILE", ""),
		},
		Analysis: AnalysisConfig{
			Iterations: getEnvIntOrDefault("PERM_ITERATIONS", 1000),
			Seed:       getEnvInt64OrDefault("PERM_SEED", 42),
			Workers:    getEnvIntOrDefault("PERM_WORKERS", 0),
			MaxCells:   getEnvIntOrDefault("MAX_CELLS", 0),
			Adjustment: getEnvOrDefault("P_ADJUSTMENT", "bh"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// RequireDatabase validates that a database URL is configured. Commands that
// persist results call this; pure file-to-report commands do not.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

func validateConfig(config *Config) error {
	if config.Analysis.Iterations < 1 {
		return errors.ConfigInvalid("PERM_ITERATIONS must be >= 1")
	}
	if config.Analysis.Workers < 0 {
		return errors.ConfigInvalid("PERM_WORKERS must be >= 0")
	}
	switch config.Analysis.Adjustment {
	case "bh", "bonferroni", "none":
	default:
		return errors.ConfigInvalid("P_ADJUSTMENT must be bh, bonferroni or none")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
