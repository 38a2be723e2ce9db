// Package extraction routes recognized text to the candidate extractor for
// the detected laboratory.
package extraction

import (
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/labdetect"
)

// Router calls exactly one extractor per classification. A lab without a
// registered extractor goes to the universal one, as does UNKNOWN.
type Router struct {
	logger     *logrus.Logger
	matcher    *labdetect.Matcher
	extractors map[domain.LabType]domain.CandidateExtractor
	universal  domain.CandidateExtractor
}

// NewRouter creates a new extraction router
func NewRouter(
	logger *logrus.Logger,
	matcher *labdetect.Matcher,
	universal domain.CandidateExtractor,
	extractors map[domain.LabType]domain.CandidateExtractor,
) *Router {
	registered := make(map[domain.LabType]domain.CandidateExtractor, len(extractors))
	for lab, ex := range extractors {
		if lab == domain.UNKNOWN || ex == nil {
			continue
		}
		registered[lab] = ex
	}
	return &Router{
		logger:     logger,
		matcher:    matcher,
		extractors: registered,
		universal:  universal,
	}
}

// ToCandidates detects the laboratory and returns the chosen extractor's
// output verbatim, even when it is empty.
func (r *Router) ToCandidates(text string) (string, domain.DetectionResult) {
	detection := r.matcher.Detect(text)
	return r.Extract(text, detection), detection
}

// Extract runs the extractor for an existing detection result.
func (r *Router) Extract(text string, detection domain.DetectionResult) string {
	if ex, ok := r.extractors[detection.LabType]; ok {
		r.logger.WithFields(logrus.Fields{
			"lab_type":   detection.LabType,
			"confidence": detection.Confidence,
		}).Debug("Using lab-specific extractor")
		return ex.Extract(text)
	}

	r.logger.WithField("lab_type", detection.LabType).Debug("Using universal extractor")
	return r.universal.Extract(text)
}
