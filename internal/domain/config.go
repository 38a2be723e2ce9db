package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Quality   QualityConfig   `mapstructure:"quality"`
	LabDetect LabDetectConfig `mapstructure:"labdetect"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// StorageConfig selects and configures the diagnostics store.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite", "postgres", "none"
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// CacheConfig represents the recent-diagnostics cache configuration
type CacheConfig struct {
	MaxItems   int           `mapstructure:"max_items"`
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// QualityConfig carries the pipeline decision thresholds.
type QualityConfig struct {
	RerunMinScore     float64 `mapstructure:"rerun_min_score"`
	LLMMinParseScore  float64 `mapstructure:"llm_min_parse_score"`
	LLMMinValidValues int     `mapstructure:"llm_min_valid_values"`
}

// LabDetectConfig optionally replaces the built-in signature table.
type LabDetectConfig struct {
	ProfilesFile string `mapstructure:"profiles_file"`
}

// OCRConfig wraps the external OCR engine with rate limiting and a circuit breaker.
type OCRConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	RateLimit          float64       `mapstructure:"rate_limit"`
	BreakerMaxRequests uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval    time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
}

// PipelineConfig controls batch processing.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

// DefaultQualityConfig returns the contract thresholds.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		RerunMinScore:     45.0,
		LLMMinParseScore:  55.0,
		LLMMinValidValues: 5,
	}
}
