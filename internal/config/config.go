// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/notifyd and cmd/garagectl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// Caller auth: name -> bearer token
	APITokens map[string]string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Push delivery
	FCMCredentialsFile string

	// Sweep schedules (cron specs, evaluated in Location)
	Timezone           string
	Location           *time.Location
	SweepAppointments  string
	SweepInvoices      string
	SweepMaintenance   string
	SweepSubscriptions string
	SweepWorkers       int

	// Maintenance
	CleanupInterval time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	tz := envOr("TIMEZONE", "Asia/Jerusalem")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	tokens, err := parseTokens(envList("API_AUTH_TOKENS", nil))
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		APITokens: tokens,

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		FCMCredentialsFile: envOr("FIREBASE_CREDENTIALS_FILE", ""),

		Timezone: tz,
		Location: loc,

		// Mirrors the original schedules: hourly appointment check, daily
		// subscription/invoice/maintenance checks at 08:00/09:00/10:00.
		SweepAppointments:  envOr("SWEEP_APPOINTMENTS_CRON", "0 * * * *"),
		SweepInvoices:      envOr("SWEEP_INVOICES_CRON", "0 9 * * *"),
		SweepMaintenance:   envOr("SWEEP_MAINTENANCE_CRON", "0 10 * * *"),
		SweepSubscriptions: envOr("SWEEP_SUBSCRIPTIONS_CRON", "0 8 * * *"),
		SweepWorkers:       envInt("SWEEP_WORKERS", 8),

		CleanupInterval: time.Duration(envInt("CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute,

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseTokens parses "name:token" entries into a caller lookup map.
func parseTokens(entries []string) (map[string]string, error) {
	tokens := make(map[string]string, len(entries))
	for _, e := range entries {
		name, token, ok := strings.Cut(e, ":")
		if !ok || name == "" || token == "" {
			return nil, fmt.Errorf("invalid API_AUTH_TOKENS entry %q, want name:token", e)
		}
		tokens[name] = token
	}
	return tokens, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
