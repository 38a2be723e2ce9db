// Package labdetect identifies the laboratory that produced a report by
// scoring its text against a declarative table of weighted signatures.
package labdetect

import (
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/textutil"
)

// Matcher scores text against a ProfileSet. It holds no mutable state and
// is safe for concurrent use.
type Matcher struct {
	profiles *ProfileSet
	logger   *logrus.Logger
}

// NewMatcher creates a matcher over profiles.
func NewMatcher(profiles *ProfileSet, logger *logrus.Logger) *Matcher {
	return &Matcher{
		profiles: profiles,
		logger:   logger,
	}
}

type profileScore struct {
	labType    domain.LabType
	raw        float64
	confidence float64
	matched    []string
}

// Detect classifies text. Blank text is UNKNOWN with zero confidence.
func (m *Matcher) Detect(text string) domain.DetectionResult {
	if textutil.IsBlank(text) {
		return domain.UnknownDetection()
	}

	text = textutil.Normalize(text)
	lower := strings.ToLower(text)

	var candidates []profileScore
	for _, p := range m.profiles.profiles {
		s := p.score(text, lower)

		m.logger.WithFields(logrus.Fields{
			"lab_type":   s.labType,
			"raw_score":  s.raw,
			"confidence": s.confidence,
			"threshold":  p.Threshold,
			"matched":    s.matched,
		}).Debug("Scored lab profile")

		if s.confidence >= p.Threshold && s.raw > 0 {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		return domain.UnknownDetection()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].raw != candidates[j].raw {
			return candidates[i].raw > candidates[j].raw
		}
		return candidates[i].confidence > candidates[j].confidence
	})

	best := candidates[0]
	return domain.DetectionResult{
		LabType:           best.labType,
		Confidence:        best.confidence,
		MatchedSignatures: best.matched,
	}
}

// DetectLegacy returns the label older callers expect: "medsi", "helix"
// or "generic".
func (m *Matcher) DetectLegacy(text string) string {
	return LegacyFormat(m.Detect(text).LabType)
}

// LegacyFormat maps a lab type to the legacy parser label. Labs without a
// dedicated legacy parser map to "generic".
func LegacyFormat(l domain.LabType) string {
	switch l {
	case domain.MEDSI:
		return "medsi"
	case domain.HELIX:
		return "helix"
	default:
		return "generic"
	}
}

func (p LabProfile) score(text, lower string) profileScore {
	s := profileScore{labType: p.LabType, matched: []string{}}
	for _, sig := range p.Signatures {
		if sig.Rule.fires(text, lower) {
			s.raw += sig.Weight
			s.matched = append(s.matched, sig.Descriptor())
		}
	}
	s.confidence = math.Min(s.raw, 1.0)
	return s
}
