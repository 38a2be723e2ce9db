// Package rerun decides whether a low-quality OCR pass earns one more attempt
// under the alternate preprocessing mode, and which of the two passes to keep.
package rerun

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
)

// DefaultMinScore is the parse score below which a rerun is attempted.
const DefaultMinScore = 45.0

// Snapshot is everything one OCR pass produced for a document.
type Snapshot struct {
	Mode      domain.OCRMode         `json:"mode"`
	Text      string                 `json:"-"`
	Detection domain.DetectionResult `json:"detection"`
	Items     []domain.Item          `json:"items"`
	Quality   domain.ParseQuality    `json:"quality"`
	Metrics   domain.QualityMetrics  `json:"metrics"`
}

// PassFunc produces a fresh snapshot from the document bytes using the
// alternate OCR mode.
type PassFunc func(ctx context.Context, raw []byte) (Snapshot, error)

// ShouldRerun reports whether a first-pass score is low enough for a rerun.
// The comparison is strict.
func ShouldRerun(score, minScore float64) bool {
	return score < minScore
}

// IsRerunBetter reports whether the second snapshot beats the first: higher
// parse score, then more valid values, then less noise. Identical snapshots
// keep the first.
func IsRerunBetter(first, second Snapshot) bool {
	s1, s2 := first.Metrics.ParseScore, second.Metrics.ParseScore
	if s2 != s1 {
		return s2 > s1
	}

	v1, v2 := first.Metrics.Parse.ValidValueCount, second.Metrics.Parse.ValidValueCount
	if v2 != v1 {
		return v2 > v1
	}

	return second.Metrics.OCR.NoiseLineRatio < first.Metrics.OCR.NoiseLineRatio
}

// Controller runs at most one corrective pass per document.
type Controller struct {
	logger   *logrus.Logger
	minScore float64
}

// NewController creates a new rerun controller
func NewController(logger *logrus.Logger, minScore float64) *Controller {
	return &Controller{
		logger:   logger,
		minScore: minScore,
	}
}

// MinScore returns the configured rerun threshold.
func (c *Controller) MinScore() float64 {
	return c.minScore
}

// Run returns the snapshot to keep and a record of what happened. A failing
// rerun pass is logged and the first pass is kept. The only error returned
// is the context's, when it ends while the rerun is in flight.
func (c *Controller) Run(ctx context.Context, first Snapshot, raw []byte, rerun PassFunc) (Snapshot, domain.RerunInfo, error) {
	info := domain.RerunInfo{
		ScoreBefore: first.Metrics.ParseScore,
		Chosen:      domain.ChosenFirst,
	}

	if !ShouldRerun(first.Metrics.ParseScore, c.minScore) || len(raw) == 0 || rerun == nil {
		return first, info, nil
	}

	reason := domain.RerunReasonLowParseScore
	info.Performed = true
	info.Reason = &reason

	c.logger.WithFields(logrus.Fields{
		"score":     first.Metrics.ParseScore,
		"min_score": c.minScore,
	}).Info("Parse score below threshold, rerunning OCR")

	startTime := time.Now()
	second, err := rerun(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return first, info, fmt.Errorf("rerun interrupted: %w", ctxErr)
		}
		c.logger.WithError(err).Warn("OCR rerun failed, keeping first pass")
		return first, info, nil
	}

	after := second.Metrics.ParseScore
	info.ScoreAfter = &after

	chosen := first
	if IsRerunBetter(first, second) {
		info.Chosen = domain.ChosenRerun
		chosen = second
	}

	c.logger.WithFields(logrus.Fields{
		"score_before": info.ScoreBefore,
		"score_after":  after,
		"chosen":       info.Chosen,
		"duration_ms":  time.Since(startTime).Milliseconds(),
	}).Info("OCR rerun completed")

	return chosen, info, nil
}
