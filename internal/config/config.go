// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// Home is the ledger root; account documents live under <Home>/usage.
	Home          string
	LogLevel      string
	WatchDebounce time.Duration
	Notifications bool
}

// Default values
const (
	defaultWatchDebounce = 250 * time.Millisecond
	defaultLogLevel      = "info"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		Home:          getEnvString("AGENTLEDGER_HOME", getDefaultHome()),
		LogLevel:      getEnvString("LOG_LEVEL", defaultLogLevel),
		WatchDebounce: getEnvDuration("WATCH_DEBOUNCE", defaultWatchDebounce),
		Notifications: getEnvBool("NOTIFICATIONS", true),
	}

	if err := ensureDir(cfg.Home); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".agentledger", ".env"),
			filepath.Join(home, ".config", "agentledger", ".env"),
		)
	}

	return paths
}

// getDefaultHome returns the default ledger home directory.
func getDefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentledger"
	}
	return filepath.Join(home, ".agentledger")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
