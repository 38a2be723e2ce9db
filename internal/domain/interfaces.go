package domain

import (
	"context"
)

// OCRMode selects the preprocessing used before recognition.
type OCRMode struct {
	AdaptiveThreshold bool `json:"adaptive_threshold"`
}

// OCREngine turns document bytes into text. Implementations live outside
// this repository; they own image preprocessing.
type OCREngine interface {
	Recognize(ctx context.Context, raw []byte, mode OCRMode) (string, error)
}

// CandidateExtractor turns recognized text into parser-ready candidate lines
// for one laboratory format.
type CandidateExtractor interface {
	Extract(text string) string
}

// CandidateExtractorFunc adapts a plain function to CandidateExtractor.
type CandidateExtractorFunc func(text string) string

// Extract calls f(text).
func (f CandidateExtractorFunc) Extract(text string) string {
	return f(text)
}

// ItemParser turns candidate lines into lab items.
type ItemParser interface {
	Parse(candidates string) []Item
}

// ItemParserFunc adapts a plain function to ItemParser.
type ItemParserFunc func(candidates string) []Item

// Parse calls f(candidates).
func (f ItemParserFunc) Parse(candidates string) []Item {
	return f(candidates)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetStorageConfig() *StorageConfig
	GetQualityConfig() *QualityConfig
	Validate() error
}
