package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManagerWithPaths(t.TempDir())
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Storage.ConnMaxLifetime)
	assert.Equal(t, domain.DefaultQualityConfig(), *m.GetQualityConfig())
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, uint32(5), cfg.OCR.BreakerFailures)
	assert.Equal(t, "labqc-mcp-server", cfg.MCP.ServerName)
	assert.NoError(t, m.Validate())
	assert.False(t, m.IsProduction())
}

func TestNewManager_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
storage:
  driver: postgres
  postgres_url: postgres://labqc@localhost/labqc?sslmode=disable
quality:
  rerun_min_score: 40
  llm_min_parse_score: 60
labdetect:
  profiles_file: /etc/labqc/profiles.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	m, err := NewManagerWithPaths(dir)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, "postgres", m.GetStorageConfig().Driver)
	assert.Equal(t, 40.0, cfg.Quality.RerunMinScore)
	assert.Equal(t, 60.0, cfg.Quality.LLMMinParseScore)
	assert.Equal(t, 5, cfg.Quality.LLMMinValidValues)
	assert.Equal(t, "/etc/labqc/profiles.yaml", cfg.LabDetect.ProfilesFile)
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv("LABQC_SERVER_PORT", "7070")
	t.Setenv("LABQC_QUALITY_LLM_MIN_VALID_VALUES", "3")

	m, err := NewManagerWithPaths(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7070, m.GetServerConfig().Port)
	assert.Equal(t, 3, m.GetQualityConfig().LLMMinValidValues)
}

func TestNewManager_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := NewManagerWithPaths(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *domain.Config {
		return &domain.Config{
			Server:   domain.ServerConfig{Port: 8080},
			Storage:  domain.StorageConfig{Driver: "sqlite", SQLitePath: "x.db"},
			Logging:  domain.LoggingConfig{Level: "info"},
			Quality:  domain.DefaultQualityConfig(),
			Pipeline: domain.PipelineConfig{Workers: 1},
		}
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"port", func(c *domain.Config) { c.Server.Port = 70000 }},
		{"rate limit", func(c *domain.Config) { c.Server.RateLimit = -1 }},
		{"driver", func(c *domain.Config) { c.Storage.Driver = "mongo" }},
		{"sqlite path", func(c *domain.Config) { c.Storage.SQLitePath = "" }},
		{"postgres url", func(c *domain.Config) { c.Storage.Driver = "postgres" }},
		{"rerun score", func(c *domain.Config) { c.Quality.RerunMinScore = -5 }},
		{"gate score", func(c *domain.Config) { c.Quality.LLMMinParseScore = 101 }},
		{"gate values", func(c *domain.Config) { c.Quality.LLMMinValidValues = -1 }},
		{"workers", func(c *domain.Config) { c.Pipeline.Workers = 0 }},
		{"log level", func(c *domain.Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	cfg := valid()
	cfg.Storage.Driver = "none"
	cfg.Storage.SQLitePath = ""
	assert.NoError(t, Validate(cfg))
}
