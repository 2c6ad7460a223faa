// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrJWTSecretRequired is returned when JWT_SECRET is not set.
	ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")
	// ErrSoraAPIURLRequired is returned when SORA_API_URL is not set.
	ErrSoraAPIURLRequired = errors.New("config: SORA_API_URL is required")
	// ErrSoraAPITokenRequired is returned when SORA_API_TOKEN is not set.
	ErrSoraAPITokenRequired = errors.New("config: SORA_API_TOKEN is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Auth settings
	JWTSecret string `env:"JWT_SECRET, required" json:"-"` // Masked in JSON

	// Sora provider settings
	SoraAPIURL   string `env:"SORA_API_URL, required" json:"sora_api_url"`
	SoraAPIToken string `env:"SORA_API_TOKEN, required" json:"-"` // Masked in JSON

	// Persistence settings. When DATABASE_URL is empty, in-memory
	// repositories are used.
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Processing settings
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS, default=8" json:"max_concurrent_jobs"`

	// Optional artifact archival settings
	ArchiveDir         string `env:"ARCHIVE_DIR" json:"archive_dir,omitempty"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 archival configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "JWT_SECRET") {
			return nil, ErrJWTSecretRequired
		}
		if strings.Contains(err.Error(), "SORA_API_URL") {
			return nil, ErrSoraAPIURLRequired
		}
		if strings.Contains(err.Error(), "SORA_API_TOKEN") {
			return nil, ErrSoraAPITokenRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if c.SoraAPIURL == "" {
		return ErrSoraAPIURLRequired
	}
	if c.SoraAPIToken == "" {
		return ErrSoraAPITokenRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, SoraAPIURL: %s, DatabaseConfigured: %t, MaxConcurrentJobs: %d, S3Bucket: %s, S3Region: %s, ArchiveDir: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.SoraAPIURL,
		c.DatabaseURL != "",
		c.MaxConcurrentJobs,
		c.S3Bucket,
		c.S3Region,
		c.ArchiveDir,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
