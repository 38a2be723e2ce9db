package quality

import (
	"github.com/labqc-mcp-server/internal/domain"
)

// Reason thresholds. These are fixed values shared with report consumers.
const (
	HighNoiseRatio      = 0.45
	LowDigitRatio       = 0.15
	LowBiomarkerRatio   = 0.08
	MinLineCount        = 10
	LowCoverageRatio    = 0.15
	ManyOutliersShare   = 0.25
	ManySuspiciousShare = 0.30
)

// ClassifyReasons returns every failing check in priority order. Checks
// are independent; clean metrics give an empty, non-nil list.
func ClassifyReasons(ocr domain.OCRMetrics, parse domain.ParseMetrics) []domain.ReasonCode {
	coverage := CoverageRatio(ocr, parse)
	if parse.CoverageRatio != nil {
		coverage = *parse.CoverageRatio
	}
	parsed := float64(max(1, parse.ParsedItems))

	fired := map[domain.ReasonCode]bool{
		domain.HIGH_NOISE:          ocr.NoiseLineRatio >= HighNoiseRatio,
		domain.LOW_DIGIT_RATIO:     ocr.DigitLineRatio < LowDigitRatio,
		domain.LOW_BIOMARKER_RATIO: ocr.BiomarkerLineRatio < LowBiomarkerRatio,
		domain.TOO_FEW_LINES:       ocr.LineCount < MinLineCount,
		domain.LOW_COVERAGE:        coverage < LowCoverageRatio,
		domain.MANY_OUTLIERS:       float64(parse.SanityOutlierCount)/parsed >= ManyOutliersShare,
		domain.MANY_SUSPICIOUS:     float64(parse.SuspiciousCount)/parsed >= ManySuspiciousShare,
	}

	reasons := []domain.ReasonCode{}
	for _, code := range domain.ReasonPriority {
		if fired[code] {
			reasons = append(reasons, code)
		}
	}
	return reasons
}
