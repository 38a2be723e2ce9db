package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 45.0, cfg.Quality.RerunMinScore)
	assert.Equal(t, 55.0, cfg.Quality.LLMMinParseScore)
	assert.Equal(t, 5, cfg.Quality.LLMMinValidValues)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Empty(t, cfg.ProfilesFile)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("LABQC_DATA_DIR", "/tmp/test-labqc")
	t.Setenv("LABQC_CACHE_MAX_ITEMS", "500")
	t.Setenv("LABQC_CACHE_TTL", "12h")
	t.Setenv("LABQC_PROFILES_FILE", "/etc/labqc/profiles.yaml")
	t.Setenv("LABQC_RERUN_MIN_SCORE", "40")
	t.Setenv("LABQC_LLM_MIN_PARSE_SCORE", "60.5")
	t.Setenv("LABQC_LLM_MIN_VALID_VALUES", "7")
	t.Setenv("LABQC_TRANSPORT", "http")
	t.Setenv("LABQC_HTTP_PORT", "9090")
	t.Setenv("LABQC_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-labqc", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "/etc/labqc/profiles.yaml", cfg.ProfilesFile)
	assert.Equal(t, 40.0, cfg.Quality.RerunMinScore)
	assert.Equal(t, 60.5, cfg.Quality.LLMMinParseScore)
	assert.Equal(t, 7, cfg.Quality.LLMMinValidValues)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresBadValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("LABQC_CACHE_MAX_ITEMS", "-3")
	t.Setenv("LABQC_RERUN_MIN_SCORE", "abc")
	t.Setenv("LABQC_HTTP_PORT", "0")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 45.0, cfg.Quality.RerunMinScore)
	assert.Equal(t, 8080, cfg.HTTPPort)
}

func TestLiteConfig_DiagnosticsDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.labqc"}

	assert.Equal(t, "/home/user/.labqc/diagnostics.db", cfg.DiagnosticsDBPath())
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.labqc"}

	assert.Equal(t, "/home/user/.labqc/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "labqc")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"LABQC_DATA_DIR",
		"LABQC_CACHE_MAX_ITEMS",
		"LABQC_CACHE_TTL",
		"LABQC_PROFILES_FILE",
		"LABQC_RERUN_MIN_SCORE",
		"LABQC_LLM_MIN_PARSE_SCORE",
		"LABQC_LLM_MIN_VALID_VALUES",
		"LABQC_TRANSPORT",
		"LABQC_HTTP_PORT",
		"LABQC_LOG_LEVEL",
		"LABQC_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLiteConfig_ToConfig(t *testing.T) {
	cfg := DefaultLiteConfig()
	cfg.DataDir = "/var/lib/labqc"
	cfg.ProfilesFile = "/etc/labqc/profiles.yaml"

	full := cfg.ToConfig()

	assert.Equal(t, "sqlite", full.Storage.Driver)
	assert.Equal(t, "/var/lib/labqc/diagnostics.db", full.Storage.SQLitePath)
	assert.Equal(t, 1000, full.Cache.MaxItems)
	assert.Empty(t, full.Cache.RedisURL)
	assert.Equal(t, "/etc/labqc/profiles.yaml", full.LabDetect.ProfilesFile)
	assert.Equal(t, cfg.Quality, full.Quality)
	assert.Equal(t, "stderr", full.Logging.Output)
	assert.NoError(t, Validate(full))
}
