// Package config loads finchat settings from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Remote API
	APIURL        string
	ClientTimeout time.Duration

	// Where the login is kept between runs; empty keeps it in memory.
	CredentialsFile string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Use the websocket stream for chat replies.
	Stream bool
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		APIURL:        strings.TrimRight(getEnv("FINCHAT_API_URL", "http://localhost:8000"), "/"),
		ClientTimeout: parseDuration(getEnv("FINCHAT_CLIENT_TIMEOUT", ""), 60*time.Second),

		CredentialsFile: getEnv("FINCHAT_CREDENTIALS_FILE", defaultCredentialsFile()),

		LogFile:  getEnv("FINCHAT_LOG_FILE", "/tmp/finchat.log"),
		LogLevel: parseLogLevel(getEnv("FINCHAT_LOG_LEVEL", "INFO")),

		Stream: getEnv("FINCHAT_STREAM", "false") == "true",
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "finchat", "credentials.yaml")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
