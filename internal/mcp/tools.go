package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/labdetect"
	"github.com/labqc-mcp-server/internal/pipeline"
	"github.com/labqc-mcp-server/internal/preflight"
	"github.com/labqc-mcp-server/internal/quality"
	"github.com/labqc-mcp-server/internal/report"
	"github.com/labqc-mcp-server/internal/rerun"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// --- Tool input/output types ---

type textInput struct {
	Text string `json:"text" jsonschema:"recognized report text"`
}

type detectLabOutput struct {
	LabType           domain.LabType `json:"lab_type"`
	Confidence        float64        `json:"confidence"`
	MatchedSignatures []string       `json:"matched_signatures"`
	LegacyFormat      string         `json:"legacy_format"`
}

type evaluateItemsInput struct {
	Items           []domain.Item `json:"items" jsonschema:"parsed lab items"`
	ExpectedMinimum *int          `json:"expected_minimum,omitempty" jsonschema:"item count that earns full coverage"`
}

type evaluateItemsOutput struct {
	Quality domain.ParseQuality `json:"quality"`
	Parse   domain.ParseMetrics `json:"parse"`
}

type metricsInput struct {
	OCR   domain.OCRMetrics   `json:"ocr" jsonschema:"text metrics from text_metrics"`
	Parse domain.ParseMetrics `json:"parse" jsonschema:"parse metrics from evaluate_items"`
}

type parseScoreOutput struct {
	ParseScore    float64 `json:"parse_score"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

type reasonLabel struct {
	Code  domain.ReasonCode `json:"code"`
	Label string            `json:"label"`
}

type classifyReasonsOutput struct {
	Reasons []domain.ReasonCode `json:"reasons"`
	Labels  []reasonLabel       `json:"labels"`
	Summary string              `json:"summary"`
}

type passSummary struct {
	ParseScore      float64 `json:"parse_score" jsonschema:"parse score of the pass"`
	ValidValueCount int     `json:"valid_value_count,omitempty" jsonschema:"valid values found by the pass"`
	NoiseLineRatio  float64 `json:"noise_line_ratio,omitempty" jsonschema:"noise line ratio of the pass text"`
}

type decideRerunInput struct {
	First  passSummary  `json:"first" jsonschema:"the first OCR pass"`
	Second *passSummary `json:"second,omitempty" jsonschema:"the rerun pass, when one was made"`
}

type decideRerunOutput struct {
	ShouldRerun   bool    `json:"should_rerun"`
	MinScore      float64 `json:"min_score"`
	RerunIsBetter *bool   `json:"rerun_is_better,omitempty"`
}

type decideInterpretationInput struct {
	ValidValueCount int     `json:"valid_value_count" jsonschema:"valid values in the final pass"`
	ParseScore      float64 `json:"parse_score" jsonschema:"parse score of the final pass"`
}

type preflightInput struct {
	Filename      string  `json:"filename,omitempty" jsonschema:"original file name"`
	ContentType   string  `json:"content_type,omitempty" jsonschema:"MIME type of the upload"`
	PDFDirectText *string `json:"pdf_direct_text,omitempty" jsonschema:"text extracted from the PDF text layer, if attempted"`
}

type analyzeTextInput struct {
	Text       string `json:"text" jsonschema:"recognized report text"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"document id (generated when empty)"`
	Filename   string `json:"filename,omitempty" jsonschema:"original file name"`
}

type getDiagnosticsInput struct {
	DocumentID string `json:"document_id" jsonschema:"document id returned by analyze_text"`
}

type listDiagnosticsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size (default 20, max 200)"`
	Offset int `json:"offset,omitempty" jsonschema:"rows to skip"`
}

// diagnosticsView is the JSON body of the bundle-returning tools.
type diagnosticsView struct {
	Diagnostics *domain.Diagnostics `json:"diagnostics"`
	ReportText  string              `json:"report_text"`
	UserNote    string              `json:"user_note,omitempty"`
	Stored      bool                `json:"stored"`
}

type listView struct {
	Diagnostics []*domain.Diagnostics `json:"diagnostics"`
	Total       int64                 `json:"total"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
}

// --- Tool handlers ---

func (s *Server) handleDetectLab(_ context.Context, _ *sdkmcp.CallToolRequest, in textInput) (*sdkmcp.CallToolResult, detectLabOutput, error) {
	d := s.app.Matcher.Detect(in.Text)
	s.logger.WithFields(logrus.Fields{
		"tool":       "detect_lab",
		"lab_type":   d.LabType,
		"confidence": d.Confidence,
	}).Debug("Tool invoked")

	return nil, detectLabOutput{
		LabType:           d.LabType,
		Confidence:        d.Confidence,
		MatchedSignatures: d.MatchedSignatures,
		LegacyFormat:      labdetect.LegacyFormat(d.LabType),
	}, nil
}

func (s *Server) handleTextMetrics(_ context.Context, _ *sdkmcp.CallToolRequest, in textInput) (*sdkmcp.CallToolResult, domain.OCRMetrics, error) {
	return nil, quality.ComputeTextMetrics(in.Text), nil
}

func (s *Server) handleEvaluateItems(_ context.Context, _ *sdkmcp.CallToolRequest, in evaluateItemsInput) (*sdkmcp.CallToolResult, evaluateItemsOutput, error) {
	if in.ExpectedMinimum != nil && *in.ExpectedMinimum < 0 {
		return nil, evaluateItemsOutput{}, domain.NewValidationError("expected_minimum", "must not be negative", *in.ExpectedMinimum)
	}

	q := quality.EvaluateItems(in.Items, in.ExpectedMinimum)
	return nil, evaluateItemsOutput{
		Quality: q,
		Parse:   quality.BuildParseMetrics(in.Items, &q),
	}, nil
}

func (s *Server) handleParseScore(_ context.Context, _ *sdkmcp.CallToolRequest, in metricsInput) (*sdkmcp.CallToolResult, parseScoreOutput, error) {
	return nil, parseScoreOutput{
		ParseScore:    quality.ComputeScore(in.OCR, in.Parse),
		CoverageRatio: quality.CoverageRatio(in.OCR, in.Parse),
	}, nil
}

func (s *Server) handleClassifyReasons(_ context.Context, _ *sdkmcp.CallToolRequest, in metricsInput) (*sdkmcp.CallToolResult, classifyReasonsOutput, error) {
	reasons := quality.ClassifyReasons(in.OCR, in.Parse)
	labels := make([]reasonLabel, len(reasons))
	for i, r := range reasons {
		labels[i] = reasonLabel{Code: r, Label: quality.HumanReason(r)}
	}

	return nil, classifyReasonsOutput{
		Reasons: reasons,
		Labels:  labels,
		Summary: domain.ReasonSummary(reasons),
	}, nil
}

func (s *Server) handleDecideRerun(_ context.Context, _ *sdkmcp.CallToolRequest, in decideRerunInput) (*sdkmcp.CallToolResult, decideRerunOutput, error) {
	minScore := s.app.Rerun.MinScore()
	out := decideRerunOutput{
		ShouldRerun: rerun.ShouldRerun(in.First.ParseScore, minScore),
		MinScore:    minScore,
	}
	if in.Second != nil {
		better := rerun.IsRerunBetter(in.First.snapshot(), in.Second.snapshot())
		out.RerunIsBetter = &better
	}
	return nil, out, nil
}

func (s *Server) handleDecideInterpretation(_ context.Context, _ *sdkmcp.CallToolRequest, in decideInterpretationInput) (*sdkmcp.CallToolResult, domain.GateDecision, error) {
	return nil, s.app.Gate.Decide(in.ValidValueCount, in.ParseScore), nil
}

func (s *Server) handlePreflight(_ context.Context, _ *sdkmcp.CallToolRequest, in preflightInput) (*sdkmcp.CallToolResult, domain.PreflightDecision, error) {
	return nil, preflight.ChooseMode(nil, in.Filename, in.ContentType, in.PDFDirectText), nil
}

func (s *Server) handleAnalyzeText(ctx context.Context, _ *sdkmcp.CallToolRequest, in analyzeTextInput) (*sdkmcp.CallToolResult, any, error) {
	text := in.Text
	res, err := s.app.Pipeline.Process(ctx, pipeline.Document{
		ID:       in.DocumentID,
		Filename: in.Filename,
		Text:     &text,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("analyze text: %w", err)
	}

	d := res.Diagnostics
	stored := false
	if s.app.Store != nil {
		if err := s.app.Store.Save(ctx, &d); err != nil {
			s.logger.WithError(err).WithField("document_id", d.DocumentID).Warn("Failed to store diagnostics")
		} else {
			stored = true
		}
	}
	if s.app.Cache != nil {
		s.app.Cache.Put(ctx, &d)
	}

	s.logger.WithFields(logrus.Fields{
		"tool":        "analyze_text",
		"document_id": d.DocumentID,
		"parse_score": d.Metrics.ParseScore,
		"decision":    d.Gate.Decision,
	}).Info("Document analyzed")

	return jsonResult(newDiagnosticsView(&d, stored))
}

func (s *Server) handleGetDiagnostics(ctx context.Context, _ *sdkmcp.CallToolRequest, in getDiagnosticsInput) (*sdkmcp.CallToolResult, any, error) {
	if in.DocumentID == "" {
		return nil, nil, domain.NewValidationError("document_id", "is required", nil)
	}

	var load func(context.Context, string) (*domain.Diagnostics, error)
	if s.app.Store != nil {
		load = s.app.Store.Get
	}

	var (
		d   *domain.Diagnostics
		err error
	)
	switch {
	case s.app.Cache != nil:
		d, err = s.app.Cache.Get(ctx, in.DocumentID, load)
	case load != nil:
		d, err = load(ctx, in.DocumentID)
	default:
		return nil, nil, fmt.Errorf("diagnostics storage is disabled")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get diagnostics %s: %w", in.DocumentID, err)
	}

	return jsonResult(newDiagnosticsView(d, s.app.Store != nil))
}

func (s *Server) handleListDiagnostics(ctx context.Context, _ *sdkmcp.CallToolRequest, in listDiagnosticsInput) (*sdkmcp.CallToolResult, any, error) {
	if s.app.Store == nil {
		return nil, nil, fmt.Errorf("diagnostics storage is disabled")
	}

	limit := in.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 0 || limit > maxListLimit {
		return nil, nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit), in.Limit)
	}
	if in.Offset < 0 {
		return nil, nil, domain.NewValidationError("offset", "must not be negative", in.Offset)
	}

	items, err := s.app.Store.List(ctx, limit, in.Offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list diagnostics: %w", err)
	}
	total, err := s.app.Store.Count(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("count diagnostics: %w", err)
	}
	if items == nil {
		items = []*domain.Diagnostics{}
	}

	return jsonResult(listView{Diagnostics: items, Total: total, Limit: limit, Offset: in.Offset})
}

func (p passSummary) snapshot() rerun.Snapshot {
	var snap rerun.Snapshot
	snap.Metrics.ParseScore = p.ParseScore
	snap.Metrics.OCR.NoiseLineRatio = p.NoiseLineRatio
	snap.Metrics.Parse.ValidValueCount = p.ValidValueCount
	snap.Quality.ValidValueCount = p.ValidValueCount
	return snap
}

func newDiagnosticsView(d *domain.Diagnostics, stored bool) diagnosticsView {
	r := report.FromDiagnostics(d)
	return diagnosticsView{
		Diagnostics: d,
		ReportText:  report.QualitySectionText(r),
		UserNote:    report.UserNote(r),
		Stored:      stored,
	}
}

// jsonResult returns v as the text content of the tool result. Tools using
// it publish no output schema.
func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
