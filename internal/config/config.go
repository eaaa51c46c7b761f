// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the deal scout service.
type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	GeminiAPIKey      string // empty disables evaluation (scans refuse to run)
	ResendAPIKey      string // empty disables email dispatch
	AlertFrom         string // From header for digest emails
	ScanIntervalHours int    // How often the cron sweep fires
	Headless          bool   // Run Chrome headless (disable for local debugging)
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	interval := 1
	if s := os.Getenv("SCAN_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SCAN_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	headless := true
	if s := os.Getenv("BROWSER_HEADLESS"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("BROWSER_HEADLESS must be a boolean, got %q", s)
		}
		headless = v
	}

	from := os.Getenv("ALERT_FROM_EMAIL")
	if from == "" {
		from = "DealScout <alerts@dealscout.app>"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:              port,
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		AlertFrom:         from,
		ScanIntervalHours: interval,
		Headless:          headless,
	}, nil
}
