package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr          string
	ServerPort          int
	DatabasePath        string
	WatchDir            string // Root of the watched directory tree
	LogLevel            string
	LogFormat           string // "console" or "json"
	ProcessPollInterval time.Duration
	AnalysisSchedule    string // cron expression, e.g. "@every 1m"
	AnalysisWindowHours int
	SortAlerts          bool
	DetectionConfigPath string // optional YAML tuning file for the rule set
	AllowedOrigin       string
	ControlTokenSecret  string
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	pollInterval, err := time.ParseDuration(getEnv("PROCESS_POLL_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESS_POLL_INTERVAL: %w", err)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("invalid PROCESS_POLL_INTERVAL: must be positive")
	}

	windowHours, err := strconv.Atoi(getEnv("ANALYSIS_WINDOW_HOURS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_WINDOW_HOURS: %w", err)
	}

	sortAlerts, err := strconv.ParseBool(getEnv("ANALYSIS_SORT_ALERTS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_SORT_ALERTS: %w", err)
	}

	return &Config{
		ListenAddr:          getEnv("LISTEN_ADDR", "127.0.0.1"),
		ServerPort:          port,
		DatabasePath:        getEnv("DATABASE_PATH", "./data/logs.db"),
		WatchDir:            getEnv("WATCH_DIR", "./data"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		ProcessPollInterval: pollInterval,
		AnalysisSchedule:    getEnv("ANALYSIS_SCHEDULE", "@every 1m"),
		AnalysisWindowHours: windowHours,
		SortAlerts:          sortAlerts,
		DetectionConfigPath: getEnv("DETECTION_CONFIG", ""),
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		ControlTokenSecret:  getEnv("CONTROL_TOKEN_SECRET", ""),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
