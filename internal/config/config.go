package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kris96tian/MOFAX-Online/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig
	Upload  UploadConfig
	Cache   CacheConfig
	Session SessionConfig
	UI      UIConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// UploadConfig controls where uploaded model files land and how big they may be
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// CacheConfig sizes the derivation cache
type CacheConfig struct {
	Size int
}

// SessionConfig controls how long an idle session keeps its model
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// UIConfig holds dashboard defaults
type UIConfig struct {
	DefaultNFeatures int
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// LogConfig holds the log verbosity
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:  *loadServerConfig(),
		Upload:  *loadUploadConfig(),
		Cache:   CacheConfig{Size: getEnvIntOrDefault("CACHE_SIZE", 256)},
		Session: *loadSessionConfig(),
		UI:      UIConfig{DefaultNFeatures: getEnvIntOrDefault("DEFAULT_N_FEATURES", 5)},
		Metrics: MetricsConfig{Enabled: getEnvBoolOrDefault("METRICS_ENABLED", true)},
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		GinMode:      getEnvOrDefault("GIN_MODE", "debug"),
		ReadTimeout:  getEnvDurationOrDefault("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDurationOrDefault("WRITE_TIMEOUT", 60*time.Second),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		Dir:      getEnvOrDefault("UPLOAD_DIR", os.TempDir()),
		MaxBytes: int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 200)) * 1024 * 1024,
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		TTL:           getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
		SweepInterval: getEnvDurationOrDefault("SESSION_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Server.Port) == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Upload.MaxBytes <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Cache.Size <= 0 {
		return errors.ConfigInvalid("CACHE_SIZE must be positive")
	}
	if config.UI.DefaultNFeatures < 1 || config.UI.DefaultNFeatures > 20 {
		return errors.ConfigInvalid("DEFAULT_N_FEATURES must be between 1 and 20")
	}
	if config.Session.TTL <= 0 {
		return errors.ConfigInvalid("SESSION_TTL must be positive")
	}
	if config.Session.SweepInterval <= 0 {
		return errors.ConfigInvalid("SESSION_SWEEP_INTERVAL must be positive")
	}
	if info, err := os.Stat(config.Upload.Dir); err != nil || !info.IsDir() {
		return errors.ConfigInvalid("UPLOAD_DIR must be an existing directory")
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
