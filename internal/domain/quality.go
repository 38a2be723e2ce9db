package domain

// MetricsSchemaVersion is stamped on every diagnostics bundle.
const MetricsSchemaVersion = "1.0"

// OCRMetrics describes the raw recognized text, independent of parsing.
type OCRMetrics struct {
	LineCount              int     `json:"line_count"`
	AvgLineLen             float64 `json:"avg_line_len"`
	DigitLineRatio         float64 `json:"digit_line_ratio"`
	BiomarkerLineRatio     float64 `json:"biomarker_line_ratio"`
	NoiseLineRatio         float64 `json:"noise_line_ratio"`
	NumericCandidatesCount int     `json:"numeric_candidates_count"`
}

// ParseQuality is the per-item evaluation of a parser's output.
// CoverageScore may exceed 1.
type ParseQuality struct {
	ValidValueCount       int     `json:"valid_value_count"`
	ValidRefCount         int     `json:"valid_ref_count"`
	ErrorCount            int     `json:"error_count"`
	SuspiciousCount       int     `json:"suspicious_count"`
	CoverageScore         float64 `json:"coverage_score"`
	ExpectedMinimum       int     `json:"expected_minimum"`
	SanityOutlierCount    int     `json:"sanity_outlier_count"`
	DuplicateDroppedCount int     `json:"duplicate_dropped_count"`
}

// ParseMetrics summarizes parsing for scoring and reason classification.
// CoverageRatio is optional: when set it overrides the ratio derived from
// parsed items and numeric candidate lines.
type ParseMetrics struct {
	ParsedItems        int      `json:"parsed_items"`
	ValidValueCount    int      `json:"valid_value_count"`
	SuspiciousCount    int      `json:"suspicious_count"`
	SanityOutlierCount int      `json:"sanity_outlier_count"`
	DedupDroppedCount  int      `json:"dedup_dropped_count"`
	CoverageRatio      *float64 `json:"coverage_ratio,omitempty"`
}

// QualityMetrics is recomputed from scratch on every pass.
type QualityMetrics struct {
	SchemaVersion string       `json:"schema_version"`
	OCR           OCRMetrics   `json:"ocr"`
	Parse         ParseMetrics `json:"parse"`
	ParseScore    float64      `json:"parse_score"`
	Reasons       []ReasonCode `json:"reasons"`
}

// ReasonCode is a human-diagnosable quality failure.
type ReasonCode string

const (
	HIGH_NOISE          ReasonCode = "HIGH_NOISE"
	LOW_DIGIT_RATIO     ReasonCode = "LOW_DIGIT_RATIO"
	LOW_BIOMARKER_RATIO ReasonCode = "LOW_BIOMARKER_RATIO"
	TOO_FEW_LINES       ReasonCode = "TOO_FEW_LINES"
	LOW_COVERAGE        ReasonCode = "LOW_COVERAGE"
	MANY_OUTLIERS       ReasonCode = "MANY_OUTLIERS"
	MANY_SUSPICIOUS     ReasonCode = "MANY_SUSPICIOUS"
)

// ReasonPriority is the fixed order in which reason codes are reported.
var ReasonPriority = []ReasonCode{
	HIGH_NOISE,
	LOW_DIGIT_RATIO,
	LOW_BIOMARKER_RATIO,
	TOO_FEW_LINES,
	LOW_COVERAGE,
	MANY_OUTLIERS,
	MANY_SUSPICIOUS,
}

// IsValid reports whether r is a known reason code.
func (r ReasonCode) IsValid() bool {
	for _, c := range ReasonPriority {
		if c == r {
			return true
		}
	}
	return false
}

// String returns the string representation of ReasonCode
func (r ReasonCode) String() string {
	return string(r)
}
