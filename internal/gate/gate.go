// Package gate decides whether parsed results are good enough to send for
// downstream interpretation.
package gate

import (
	"github.com/labqc-mcp-server/internal/domain"
)

const (
	DefaultMinValidValues = 5
	DefaultMinParseScore  = 55.0
)

// Gate holds the interpretation thresholds. Both bounds are inclusive.
type Gate struct {
	minValidValues int
	minParseScore  float64
}

// New creates a gate with explicit thresholds
func New(minValidValues int, minParseScore float64) *Gate {
	return &Gate{
		minValidValues: minValidValues,
		minParseScore:  minParseScore,
	}
}

// NewFromConfig creates a gate from the quality configuration
func NewFromConfig(cfg domain.QualityConfig) *Gate {
	return New(cfg.LLMMinValidValues, cfg.LLMMinParseScore)
}

// Decide evaluates the gate against the final metrics snapshot. Too few
// values skips regardless of score.
func (g *Gate) Decide(validValueCount int, parseScore float64) domain.GateDecision {
	d := domain.GateDecision{
		EligibleByValidCount: validValueCount >= g.minValidValues,
		EligibleByParseScore: parseScore >= g.minParseScore,
		MinParseScore:        g.minParseScore,
		ParseScore:           parseScore,
	}

	switch {
	case !d.EligibleByValidCount:
		d.Decision = domain.SKIP_LOW_VALUES
	case !d.EligibleByParseScore:
		d.Decision = domain.SKIP_LOW_SCORE
	default:
		d.Decision = domain.CALL
	}
	return d
}

// Decide evaluates the default thresholds.
func Decide(validValueCount int, parseScore float64) domain.GateDecision {
	return New(DefaultMinValidValues, DefaultMinParseScore).Decide(validValueCount, parseScore)
}
