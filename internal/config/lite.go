// Package config provides configuration management for the server and CLI.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labqc-mcp-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the diagnostics database and exports

	// Cache settings
	CacheMaxItems int           // Maximum diagnostics kept in memory
	CacheTTL      time.Duration // Default cache TTL

	// Detection
	ProfilesFile string // Optional signature table replacing the built-in one

	// Quality thresholds
	Quality domain.QualityConfig

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".labqc")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Quality:       domain.DefaultQualityConfig(),
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("LABQC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("LABQC_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("LABQC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.ProfilesFile = os.Getenv("LABQC_PROFILES_FILE")

	// Thresholds
	if v := os.Getenv("LABQC_RERUN_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Quality.RerunMinScore = f
		}
	}
	if v := os.Getenv("LABQC_LLM_MIN_PARSE_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Quality.LLMMinParseScore = f
		}
	}
	if v := os.Getenv("LABQC_LLM_MIN_VALID_VALUES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Quality.LLMMinValidValues = n
		}
	}

	// Transport
	if v := os.Getenv("LABQC_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("LABQC_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("LABQC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LABQC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DiagnosticsDBPath returns the path to the diagnostics SQLite database.
func (c *LiteConfig) DiagnosticsDBPath() string {
	return filepath.Join(c.DataDir, "diagnostics.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// LoggingConfig returns the logging section in the full config shape.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}

// ToConfig expands the lite settings into the full configuration: SQLite
// storage under DataDir, memory-only cache and default resilience settings.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         c.HTTPPort,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Storage: domain.StorageConfig{
			Driver:     "sqlite",
			SQLitePath: c.DiagnosticsDBPath(),
		},
		Cache: domain.CacheConfig{
			MaxItems:   c.CacheMaxItems,
			DefaultTTL: c.CacheTTL,
		},
		Logging:   c.LoggingConfig(),
		Quality:   c.Quality,
		LabDetect: domain.LabDetectConfig{ProfilesFile: c.ProfilesFile},
		OCR: domain.OCRConfig{
			Timeout:         90 * time.Second,
			BreakerFailures: 5,
		},
		Pipeline: domain.PipelineConfig{Workers: 4},
		MCP: domain.MCPConfig{
			ServerName:    "labqc-mcp-server",
			ServerVersion: "1.0.0",
		},
	}
}
