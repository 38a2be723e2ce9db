package quality

import (
	"math"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/textutil"
)

// Score weights. Coverage dominates, valid-value volume follows and
// cleanliness only breaks near-ties.
const (
	coverageWeight    = 0.6
	validValuesWeight = 0.3
	cleanlinessWeight = 0.1

	// validValuesSaturation is the valid value count that earns the full
	// volume share.
	validValuesSaturation = 12
)

// CoverageRatio is parsed items per numeric candidate line.
func CoverageRatio(ocr domain.OCRMetrics, parse domain.ParseMetrics) float64 {
	return float64(parse.ParsedItems) / float64(max(1, ocr.NumericCandidatesCount))
}

// ComputeScore folds text and parse metrics into a score in [0, 100],
// rounded to one decimal.
func ComputeScore(ocr domain.OCRMetrics, parse domain.ParseMetrics) float64 {
	coverage := CoverageRatio(ocr, parse)
	vv := math.Min(1.0, float64(parse.ValidValueCount)/validValuesSaturation)

	score01 := coverageWeight*math.Min(1.0, coverage) +
		validValuesWeight*vv +
		cleanlinessWeight*(1.0-ocr.NoiseLineRatio)

	return textutil.Round(100.0*textutil.Clamp(score01, 0, 1), 1)
}

// Assemble builds the full metrics record for one pass.
func Assemble(ocr domain.OCRMetrics, parse domain.ParseMetrics) domain.QualityMetrics {
	return domain.QualityMetrics{
		SchemaVersion: domain.MetricsSchemaVersion,
		OCR:           ocr,
		Parse:         parse,
		ParseScore:    ComputeScore(ocr, parse),
		Reasons:       ClassifyReasons(ocr, parse),
	}
}
