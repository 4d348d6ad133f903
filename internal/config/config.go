// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the orchestration server.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	MetaDBPath string // path to the SQLite control-plane database
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// DefaultTenant is used for requests that carry no X-Tenant-ID header.
	DefaultTenant string

	// Idle reaper
	ReaperInterval time.Duration // sweep interval (default 60s)
	IdleTimeout    time.Duration // default idle threshold (default 30m)

	// Query execution
	QueryRowLimit int    // default row limit for submissions without one
	EngineURL     string // remote execution agent base URL (empty: embedded DuckDB)
	EngineToken   string // auth token for the execution agent

	// Cluster provisioning
	ProvisionerURL   string        // remote provisioning agent base URL (empty: local simulator)
	ProvisionerToken string        // auth token for the provisioning agent
	ProvisionDelay   time.Duration // simulated startup delay for the local provisioner

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second per tenant (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		MetaDBPath:       os.Getenv("META_DB_PATH"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
		DefaultTenant:    os.Getenv("DEFAULT_TENANT"),
		EngineURL:        os.Getenv("ENGINE_URL"),
		EngineToken:      os.Getenv("ENGINE_TOKEN"),
		ProvisionerURL:   os.Getenv("PROVISIONER_URL"),
		ProvisionerToken: os.Getenv("PROVISIONER_TOKEN"),
	}

	if v := os.Getenv("REAPER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REAPER_INTERVAL %q: %w", v, err)
		}
		cfg.ReaperInterval = d
	}
	if v := os.Getenv("IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid IDLE_TIMEOUT %q: %w", v, err)
		}
		cfg.IdleTimeout = d
	}
	if v := os.Getenv("PROVISION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROVISION_DELAY %q: %w", v, err)
		}
		cfg.ProvisionDelay = d
	}
	if v := os.Getenv("QUERY_ROW_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid QUERY_ROW_LIMIT %q", v)
		}
		cfg.QueryRowLimit = n
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "kadali_meta.sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default-tenant"
	}
	if cfg.ReaperInterval == 0 {
		cfg.ReaperInterval = time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ProvisionDelay == 0 {
		cfg.ProvisionDelay = 2 * time.Second
	}
	if cfg.QueryRowLimit == 0 {
		cfg.QueryRowLimit = 1000
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.ProvisionerURL == "" {
		cfg.Warnings = append(cfg.Warnings, "PROVISIONER_URL not set — using the local provisioning simulator")
	}
	if cfg.EngineURL == "" {
		cfg.Warnings = append(cfg.Warnings, "ENGINE_URL not set — queries run on the embedded DuckDB engine")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.ProvisionerURL == "" {
			return nil, fmt.Errorf("PROVISIONER_URL must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// env vars take precedence over .env entries
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
