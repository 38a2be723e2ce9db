// Package pipeline runs one document through preflight, OCR, lab detection,
// candidate extraction, parsing, quality scoring, the rerun controller and
// the interpretation gate, and returns the diagnostics bundle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/extraction"
	"github.com/labqc-mcp-server/internal/gate"
	"github.com/labqc-mcp-server/internal/pdftext"
	"github.com/labqc-mcp-server/internal/preflight"
	"github.com/labqc-mcp-server/internal/quality"
	"github.com/labqc-mcp-server/internal/rerun"
)

// Document is one upload. Text, when set, is used as already recognized
// text and OCR is skipped; such documents are never rerun.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Raw         []byte
	Text        *string
}

// Result is the diagnostics bundle plus the snapshot it was built from.
type Result struct {
	Diagnostics domain.Diagnostics
	Snapshot    rerun.Snapshot
}

// Pipeline wires the stages together. It holds no per-document state and is
// safe for concurrent use.
type Pipeline struct {
	logger  *logrus.Logger
	engine  domain.OCREngine
	router  *extraction.Router
	parser  domain.ItemParser
	rerun   *rerun.Controller
	gate    *gate.Gate
	workers int
}

// New creates a new pipeline
func New(
	logger *logrus.Logger,
	engine domain.OCREngine,
	router *extraction.Router,
	parser domain.ItemParser,
	rerunController *rerun.Controller,
	interpretationGate *gate.Gate,
	workers int,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		logger:  logger,
		engine:  engine,
		router:  router,
		parser:  parser,
		rerun:   rerunController,
		gate:    interpretationGate,
		workers: workers,
	}
}

// Process runs a single document.
func (p *Pipeline) Process(ctx context.Context, doc Document) (*Result, error) {
	startTime := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	logger := p.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"filename":    doc.Filename,
	})

	diag := domain.Diagnostics{
		DocumentID:    doc.ID,
		SchemaVersion: domain.MetricsSchemaVersion,
		Filename:      doc.Filename,
		CreatedAt:     time.Now().UTC(),
	}

	var (
		first rerun.Snapshot
		raw   []byte
	)
	switch {
	case doc.Text != nil:
		first = p.Analyze(*doc.Text, domain.OCRMode{})
	case len(doc.Raw) == 0:
		return nil, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNoRawBytes)
	default:
		decision := p.preflight(doc)
		diag.Preflight = &decision
		logger.WithFields(logrus.Fields{
			"adaptive_threshold": decision.AdaptiveThreshold,
			"reason":             decision.Reason,
		}).Debug("Preflight decision")

		mode := domain.OCRMode{AdaptiveThreshold: decision.AdaptiveThreshold}
		text, err := p.engine.Recognize(ctx, doc.Raw, mode)
		if err != nil {
			return nil, fmt.Errorf("first ocr pass failed: %w", err)
		}
		first = p.Analyze(text, mode)
		raw = doc.Raw
	}

	chosen, rerunInfo, err := p.rerun.Run(ctx, first, raw, p.alternatePass(first.Mode))
	if err != nil {
		return nil, err
	}

	diag.Detection = chosen.Detection
	diag.Quality = chosen.Quality
	diag.Metrics = chosen.Metrics
	diag.ReasonSummary = domain.ReasonSummary(chosen.Metrics.Reasons)
	diag.Rerun = rerunInfo
	diag.Gate = p.gate.Decide(chosen.Quality.ValidValueCount, chosen.Metrics.ParseScore)
	diag.ItemCount = len(chosen.Items)

	logger.WithFields(logrus.Fields{
		"lab_type":    diag.Detection.LabType,
		"parse_score": diag.Metrics.ParseScore,
		"reasons":     diag.ReasonSummary,
		"rerun":       rerunInfo.Performed,
		"decision":    diag.Gate.Decision,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Document processed")

	return &Result{Diagnostics: diag, Snapshot: chosen}, nil
}

// Analyze runs every stage after OCR on recognized text.
func (p *Pipeline) Analyze(text string, mode domain.OCRMode) rerun.Snapshot {
	candidates, detection := p.router.ToCandidates(text)
	items := p.parser.Parse(candidates)
	q := quality.EvaluateItems(items, nil)

	return rerun.Snapshot{
		Mode:      mode,
		Text:      text,
		Detection: detection,
		Items:     items,
		Quality:   q,
		Metrics:   quality.Assemble(quality.ComputeTextMetrics(text), quality.BuildParseMetrics(items, &q)),
	}
}

// ProcessBatch processes documents concurrently, bounded by the configured
// worker count. Results keep input order. The first failure cancels the
// remaining documents.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []Document) ([]*Result, error) {
	results := make([]*Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range docs {
		g.Go(func() error {
			res, err := p.Process(gctx, docs[i])
			if err != nil {
				return fmt.Errorf("document %d (%s): %w", i, docs[i].Filename, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) preflight(doc Document) domain.PreflightDecision {
	var pdfText *string
	if preflight.IsPDF(doc.Filename, doc.ContentType) {
		pdfText = pdftext.ExtractOptional(doc.Raw)
	}
	return preflight.ChooseMode(doc.Raw, doc.Filename, doc.ContentType, pdfText)
}

func (p *Pipeline) alternatePass(firstMode domain.OCRMode) rerun.PassFunc {
	mode := domain.OCRMode{AdaptiveThreshold: !firstMode.AdaptiveThreshold}
	return func(ctx context.Context, raw []byte) (rerun.Snapshot, error) {
		text, err := p.engine.Recognize(ctx, raw, mode)
		if err != nil {
			return rerun.Snapshot{}, err
		}
		return p.Analyze(text, mode), nil
	}
}

// IsNoRawBytes reports whether err came from a document with no content.
func IsNoRawBytes(err error) bool {
	return errors.Is(err, domain.ErrNoRawBytes)
}
