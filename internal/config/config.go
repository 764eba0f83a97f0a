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

// LimitsConfig holds the admission ceilings shared by the SQL validator and
// the structured-query compiler. Zero values are replaced with defaults in
// LoadFromEnv; the ceilings themselves are never raised past the hard caps
// compiled into the validator.
type LimitsConfig struct {
	MaxQueryLength int           // longest accepted SQL text in bytes (default 10000)
	MaxRows        int           // hard row ceiling per response (default 1000)
	DefaultLimit   int           // page size when the caller names none (default 100)
	MaxScore       int           // aggregate complexity ceiling (default 100)
	MaxFilters     int           // filter predicate ceiling (default 50)
	MaxAnnotations int           // annotation ceiling (default 20)
	MaxFields      int           // selected field ceiling (default 40)
	MaxJoinDepth   int           // relationship traversal ceiling (default 5)
	QueryTimeout   time.Duration // per-statement execution deadline (default 30s)
}

// Config holds the configuration for the HTTP API and the Postgres catalog.
type Config struct {
	DatabaseURL string // Postgres connection string
	ListenAddr  string // HTTP listen address (default ":8080")
	SchemaFile  string // optional YAML schema registry; built-in registry when empty
	LogLevel    string // log level: debug, info, warn, error (default "info")
	Env         string // environment: "development" (default) or "production"

	Limits LimitsConfig

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
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
// DATABASE_URL is optional in development so the validate-only endpoints
// and CLI can run without a database.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		SchemaFile:  os.Getenv("SCHEMA_FILE"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Env:         os.Getenv("ENV"),
	}

	// Admission ceilings
	cfg.Limits = LimitsConfig{
		MaxQueryLength: parseIntEnv("MAX_QUERY_LENGTH"),
		MaxRows:        parseIntEnv("MAX_ROWS"),
		DefaultLimit:   parseIntEnv("DEFAULT_LIMIT"),
		MaxScore:       parseIntEnv("MAX_COMPLEXITY_SCORE"),
		MaxFilters:     parseIntEnv("MAX_FILTERS"),
		MaxAnnotations: parseIntEnv("MAX_ANNOTATIONS"),
		MaxFields:      parseIntEnv("MAX_FIELDS"),
		MaxJoinDepth:   parseIntEnv("MAX_JOIN_DEPTH"),
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Limits.QueryTimeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("QUERY_TIMEOUT %q is not a duration, using default", v))
		}
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
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Limits.MaxQueryLength == 0 {
		cfg.Limits.MaxQueryLength = 10000
	}
	if cfg.Limits.MaxRows == 0 {
		cfg.Limits.MaxRows = 1000
	}
	if cfg.Limits.DefaultLimit == 0 {
		cfg.Limits.DefaultLimit = 100
	}
	if cfg.Limits.MaxScore == 0 {
		cfg.Limits.MaxScore = 100
	}
	if cfg.Limits.MaxFilters == 0 {
		cfg.Limits.MaxFilters = 50
	}
	if cfg.Limits.MaxAnnotations == 0 {
		cfg.Limits.MaxAnnotations = 20
	}
	if cfg.Limits.MaxFields == 0 {
		cfg.Limits.MaxFields = 40
	}
	if cfg.Limits.MaxJoinDepth == 0 {
		cfg.Limits.MaxJoinDepth = 5
	}
	if cfg.Limits.QueryTimeout == 0 {
		cfg.Limits.QueryTimeout = 30 * time.Second
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

	// MAX_ROWS larger than the default would widen the public surface, so it
	// only shrinks. DEFAULT_LIMIT can never exceed MAX_ROWS.
	if cfg.Limits.MaxRows > 1000 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("MAX_ROWS %d exceeds the hard ceiling 1000, clamped", cfg.Limits.MaxRows))
		cfg.Limits.MaxRows = 1000
	}
	if cfg.Limits.DefaultLimit > cfg.Limits.MaxRows {
		cfg.Limits.DefaultLimit = cfg.Limits.MaxRows
	}

	if cfg.DatabaseURL == "" {
		cfg.Warnings = append(cfg.Warnings, "DATABASE_URL not set; execution endpoints will be unavailable")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseIntEnv(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
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
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
