package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("MAX_ROWS", "")
	t.Setenv("ENV", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10000, cfg.Limits.MaxQueryLength)
	assert.Equal(t, 1000, cfg.Limits.MaxRows)
	assert.Equal(t, 100, cfg.Limits.DefaultLimit)
	assert.Equal(t, 100, cfg.Limits.MaxScore)
	assert.Equal(t, 50, cfg.Limits.MaxFilters)
	assert.Equal(t, 20, cfg.Limits.MaxAnnotations)
	assert.Equal(t, 40, cfg.Limits.MaxFields)
	assert.Equal(t, 5, cfg.Limits.MaxJoinDepth)
	assert.Equal(t, 30*time.Second, cfg.Limits.QueryTimeout)
	assert.Equal(t, float64(100), cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.NotEmpty(t, cfg.Warnings, "missing DATABASE_URL should warn")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dandi")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("MAX_QUERY_LENGTH", "5000")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("DEFAULT_LIMIT", "25")
	t.Setenv("QUERY_TIMEOUT", "10s")
	t.Setenv("RATE_LIMIT_RPS", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/dandi", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5000, cfg.Limits.MaxQueryLength)
	assert.Equal(t, 500, cfg.Limits.MaxRows)
	assert.Equal(t, 25, cfg.Limits.DefaultLimit)
	assert.Equal(t, 10*time.Second, cfg.Limits.QueryTimeout)
	assert.Equal(t, float64(50), cfg.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_MaxRowsNeverRaised(t *testing.T) {
	t.Setenv("MAX_ROWS", "50000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Limits.MaxRows)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnv_DefaultLimitClampedToMaxRows(t *testing.T) {
	t.Setenv("MAX_ROWS", "50")
	t.Setenv("DEFAULT_LIMIT", "100")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Limits.DefaultLimit)
}

func TestLoadFromEnv_ProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dandiarchive.org")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadFromEnv_ProductionRejectsCORSWildcard(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/dandi")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel().String(), "level %q", tt.level)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# catalog settings\nTEST_DOTENV_KEY=\"quoted value\"\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_DOTENV_KEY"); val != "quoted value" {
		t.Errorf("TEST_DOTENV_KEY = %q, want %q", val, "quoted value")
	}
	_ = os.Unsetenv("TEST_DOTENV_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
