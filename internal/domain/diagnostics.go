package domain

import (
	"strings"
	"time"
)

// Diagnostics is the per-document bundle handed to reporting and storage.
type Diagnostics struct {
	DocumentID    string             `json:"document_id"`
	SchemaVersion string             `json:"schema_version"`
	Filename      string             `json:"filename,omitempty"`
	Detection     DetectionResult    `json:"detection"`
	Preflight     *PreflightDecision `json:"preflight,omitempty"`
	Quality       ParseQuality       `json:"quality"`
	Metrics       QualityMetrics     `json:"metrics"`
	ReasonSummary string             `json:"reason_summary"`
	Rerun         RerunInfo          `json:"rerun"`
	Gate          GateDecision       `json:"gate"`
	ItemCount     int                `json:"item_count"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ReasonSummary joins reason codes as "A, B".
func ReasonSummary(reasons []ReasonCode) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
