package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/labqc-mcp-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithPaths(".", "./config", "/etc/labqc/")
}

// NewManagerWithPaths creates a manager that looks for config.yaml in the
// given directories, in order.
func NewManagerWithPaths(paths ...string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(paths); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(paths []string) error {
	v := m.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("LABQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v
	quality := domain.DefaultQualityConfig()

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/diagnostics.db")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.max_open_conns", 25)
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.conn_max_lifetime", "5m")
	v.SetDefault("storage.run_migrations", true)

	// Cache defaults
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Quality thresholds
	v.SetDefault("quality.rerun_min_score", quality.RerunMinScore)
	v.SetDefault("quality.llm_min_parse_score", quality.LLMMinParseScore)
	v.SetDefault("quality.llm_min_valid_values", quality.LLMMinValidValues)

	v.SetDefault("labdetect.profiles_file", "")

	// OCR engine resilience
	v.SetDefault("ocr.timeout", "90s")
	v.SetDefault("ocr.rate_limit", 2.0)
	v.SetDefault("ocr.breaker_max_requests", 1)
	v.SetDefault("ocr.breaker_interval", "60s")
	v.SetDefault("ocr.breaker_timeout", "30s")
	v.SetDefault("ocr.breaker_failures", 5)

	v.SetDefault("pipeline.workers", 4)

	v.SetDefault("mcp.server_name", "labqc-mcp-server")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// GetQualityConfig returns the pipeline thresholds
func (m *Manager) GetQualityConfig() *domain.QualityConfig {
	return &m.config.Quality
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	config := &domain.Config{}
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = config
	return nil
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration value.
func Validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server rate limit: %v", config.Server.RateLimit)
	}

	switch config.Storage.Driver {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required")
		}
	case "none":
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Storage.Driver)
	}

	q := config.Quality
	if q.RerunMinScore < 0 || q.RerunMinScore > 100 {
		return fmt.Errorf("invalid rerun min score: %v", q.RerunMinScore)
	}
	if q.LLMMinParseScore < 0 || q.LLMMinParseScore > 100 {
		return fmt.Errorf("invalid llm min parse score: %v", q.LLMMinParseScore)
	}
	if q.LLMMinValidValues < 0 {
		return fmt.Errorf("invalid llm min valid values: %d", q.LLMMinValidValues)
	}

	if config.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be positive: %d", config.Pipeline.Workers)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}
