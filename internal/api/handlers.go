package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/labdetect"
	"github.com/labqc-mcp-server/internal/middleware"
	"github.com/labqc-mcp-server/internal/pdftext"
	"github.com/labqc-mcp-server/internal/pipeline"
	"github.com/labqc-mcp-server/internal/preflight"
	"github.com/labqc-mcp-server/internal/quality"
	"github.com/labqc-mcp-server/internal/report"
	"github.com/labqc-mcp-server/internal/rerun"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// TextRequest carries raw recognized text.
type TextRequest struct {
	Text string `json:"text"`
}

// DetectResponse is a detection result plus the legacy parser label.
type DetectResponse struct {
	domain.DetectionResult
	LegacyFormat string `json:"legacy_format"`
}

// ItemsRequest is the input of the parsed-item evaluation.
type ItemsRequest struct {
	Items           []domain.Item `json:"items"`
	ExpectedMinimum *int          `json:"expected_minimum,omitempty"`
}

// MetricsRequest carries both metric groups.
type MetricsRequest struct {
	OCR   domain.OCRMetrics   `json:"ocr"`
	Parse domain.ParseMetrics `json:"parse"`
}

// ScoreResponse is the composite score.
type ScoreResponse struct {
	ParseScore    float64 `json:"parse_score"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// ReasonLabel pairs a reason code with its user-facing label.
type ReasonLabel struct {
	Code  domain.ReasonCode `json:"code"`
	Label string            `json:"label"`
}

// ReasonsResponse lists reason codes in priority order.
type ReasonsResponse struct {
	Reasons []domain.ReasonCode `json:"reasons"`
	Labels  []ReasonLabel       `json:"labels"`
	Summary string              `json:"summary"`
}

// RerunDecideRequest compares a first pass with a rerun pass.
type RerunDecideRequest struct {
	First  rerun.Snapshot `json:"first"`
	Second rerun.Snapshot `json:"second"`
}

// RerunDecideResponse reports whether the first pass earns a rerun and
// whether the second pass beats it.
type RerunDecideResponse struct {
	ShouldRerun   bool    `json:"should_rerun"`
	MinScore      float64 `json:"min_score"`
	RerunIsBetter bool    `json:"rerun_is_better"`
}

// GateRequest is the input of the interpretation gate.
type GateRequest struct {
	ValidValueCount int     `json:"valid_value_count"`
	ParseScore      float64 `json:"parse_score"`
}

// PreflightRequest describes a document without uploading it.
type PreflightRequest struct {
	Filename      string  `json:"filename"`
	ContentType   string  `json:"content_type"`
	PDFDirectText *string `json:"pdf_direct_text,omitempty"`
}

// AnalyzeRequest submits recognized text to the pipeline.
type AnalyzeRequest struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}

// ReportView is the rendered quality section.
type ReportView struct {
	Text   string        `json:"text"`
	HTML   string        `json:"html"`
	Note   string        `json:"note"`
	Labels []ReasonLabel `json:"labels"`
}

// AnalyzeResponse is the pipeline output.
type AnalyzeResponse struct {
	Diagnostics domain.Diagnostics `json:"diagnostics"`
	Report      ReportView         `json:"report"`
	Stored      bool               `json:"stored"`
}

// ListResponse is one page of stored diagnostics.
type ListResponse struct {
	Diagnostics []*domain.Diagnostics `json:"diagnostics"`
	Total       int64                 `json:"total"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.configManager.GetConfig().MCP.ServerVersion,
		"storage":   "disabled",
	}

	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := s.deps.Store.Count(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["storage"] = err.Error()
		} else {
			body["storage"] = "ok"
		}
	}
	if s.deps.Cache != nil {
		body["cache"] = s.deps.Cache.Stats()
	}

	c.JSON(status, body)
}

func (s *Server) handleDetect(c *gin.Context) {
	var req TextRequest
	if !s.bind(c, &req) {
		return
	}

	result := s.deps.Matcher.Detect(req.Text)
	c.JSON(http.StatusOK, DetectResponse{
		DetectionResult: result,
		LegacyFormat:    labdetect.LegacyFormat(result.LabType),
	})
}

func (s *Server) handleTextMetrics(c *gin.Context) {
	var req TextRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, quality.ComputeTextMetrics(req.Text))
}

func (s *Server) handleEvaluateItems(c *gin.Context) {
	var req ItemsRequest
	if !s.bind(c, &req) {
		return
	}
	if req.ExpectedMinimum != nil && *req.ExpectedMinimum < 0 {
		s.fail(c, http.StatusBadRequest, domain.NewValidationError("expected_minimum", "must not be negative", *req.ExpectedMinimum))
		return
	}

	q := quality.EvaluateItems(req.Items, req.ExpectedMinimum)
	c.JSON(http.StatusOK, gin.H{
		"quality": q,
		"parse":   quality.BuildParseMetrics(req.Items, &q),
	})
}

func (s *Server) handleScore(c *gin.Context) {
	var req MetricsRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, ScoreResponse{
		ParseScore:    quality.ComputeScore(req.OCR, req.Parse),
		CoverageRatio: quality.CoverageRatio(req.OCR, req.Parse),
	})
}

func (s *Server) handleReasons(c *gin.Context) {
	var req MetricsRequest
	if !s.bind(c, &req) {
		return
	}

	reasons := quality.ClassifyReasons(req.OCR, req.Parse)
	c.JSON(http.StatusOK, ReasonsResponse{
		Reasons: reasons,
		Labels:  reasonLabels(reasons),
		Summary: domain.ReasonSummary(reasons),
	})
}

func (s *Server) handleRerunDecide(c *gin.Context) {
	var req RerunDecideRequest
	if !s.bind(c, &req) {
		return
	}

	minScore := s.deps.Rerun.MinScore()
	c.JSON(http.StatusOK, RerunDecideResponse{
		ShouldRerun:   rerun.ShouldRerun(req.First.Metrics.ParseScore, minScore),
		MinScore:      minScore,
		RerunIsBetter: rerun.IsRerunBetter(req.First, req.Second),
	})
}

func (s *Server) handleGate(c *gin.Context) {
	var req GateRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.deps.Gate.Decide(req.ValidValueCount, req.ParseScore))
}

func (s *Server) handlePreflight(c *gin.Context) {
	if isMultipart(c) {
		raw, filename, contentType, ok := s.readUpload(c)
		if !ok {
			return
		}
		var pdfText *string
		if preflight.IsPDF(filename, contentType) {
			pdfText = pdftext.ExtractOptional(raw)
		}
		c.JSON(http.StatusOK, preflight.ChooseMode(raw, filename, contentType, pdfText))
		return
	}

	var req PreflightRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, preflight.ChooseMode(nil, req.Filename, req.ContentType, req.PDFDirectText))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var doc pipeline.Document

	if isMultipart(c) {
		raw, filename, contentType, ok := s.readUpload(c)
		if !ok {
			return
		}
		doc = pipeline.Document{
			ID:          c.PostForm("document_id"),
			Filename:    filename,
			ContentType: contentType,
			Raw:         raw,
		}
	} else {
		var req AnalyzeRequest
		if !s.bind(c, &req) {
			return
		}
		text := req.Text
		doc = pipeline.Document{ID: req.DocumentID, Filename: req.Filename, Text: &text}
	}

	res, err := s.deps.Pipeline.Process(c.Request.Context(), doc)
	if err != nil {
		switch {
		case pipeline.IsNoRawBytes(err), errors.Is(err, domain.ErrInvalidInput):
			s.fail(c, http.StatusBadRequest, err)
		default:
			s.failWithCode(c, http.StatusBadGateway, domain.ErrCodeOCR, "document processing failed", err)
		}
		return
	}

	d := res.Diagnostics
	stored := false
	if s.deps.Store != nil {
		if err := s.deps.Store.Save(c.Request.Context(), &d); err != nil {
			s.logger(c).WithError(err).WithField("document_id", d.DocumentID).Warn("Failed to store diagnostics")
		} else {
			stored = true
		}
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Put(c.Request.Context(), &d)
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Diagnostics: d,
		Report:      renderReport(&d),
		Stored:      stored,
	})
}

func (s *Server) handleListDiagnostics(c *gin.Context) {
	if s.deps.Store == nil {
		s.storageDisabled(c)
		return
	}

	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		s.fail(c, http.StatusBadRequest, domain.NewValidationError("limit", "must be between 1 and 500", c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.fail(c, http.StatusBadRequest, domain.NewValidationError("offset", "must not be negative", c.Query("offset")))
		return
	}

	ctx := c.Request.Context()
	items, err := s.deps.Store.List(ctx, limit, offset)
	if err != nil {
		s.failWithCode(c, http.StatusInternalServerError, domain.ErrCodeStorage, "failed to list diagnostics", err)
		return
	}
	total, err := s.deps.Store.Count(ctx)
	if err != nil {
		s.failWithCode(c, http.StatusInternalServerError, domain.ErrCodeStorage, "failed to count diagnostics", err)
		return
	}
	if items == nil {
		items = []*domain.Diagnostics{}
	}

	c.JSON(http.StatusOK, ListResponse{Diagnostics: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetDiagnostics(c *gin.Context) {
	d, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleGetReport(c *gin.Context) {
	d, ok := s.lookup(c)
	if !ok {
		return
	}

	view := renderReport(d)
	switch c.DefaultQuery("format", "json") {
	case "text":
		c.String(http.StatusOK, view.Text)
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(view.HTML))
	default:
		c.JSON(http.StatusOK, view)
	}
}

func (s *Server) handleDeleteDiagnostics(c *gin.Context) {
	if s.deps.Store == nil {
		s.storageDisabled(c)
		return
	}

	id := c.Param("id")
	if err := s.deps.Store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.failWithCode(c, http.StatusNotFound, domain.ErrCodeNotFound, "diagnostics not found", err)
			return
		}
		s.failWithCode(c, http.StatusInternalServerError, domain.ErrCodeStorage, "failed to delete diagnostics", err)
		return
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Invalidate(c.Request.Context(), id)
	}
	c.Status(http.StatusNoContent)
}

// lookup reads a bundle through the cache, falling back to the store.
func (s *Server) lookup(c *gin.Context) (*domain.Diagnostics, bool) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var load func(context.Context, string) (*domain.Diagnostics, error)
	if s.deps.Store != nil {
		load = s.deps.Store.Get
	}

	var (
		d   *domain.Diagnostics
		err error
	)
	switch {
	case s.deps.Cache != nil:
		d, err = s.deps.Cache.Get(ctx, id, load)
	case load != nil:
		d, err = load(ctx, id)
	default:
		s.storageDisabled(c)
		return nil, false
	}

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.failWithCode(c, http.StatusNotFound, domain.ErrCodeNotFound, "diagnostics not found", err)
			return nil, false
		}
		s.failWithCode(c, http.StatusInternalServerError, domain.ErrCodeStorage, "failed to load diagnostics", err)
		return nil, false
	}
	return d, true
}

func (s *Server) readUpload(c *gin.Context) ([]byte, string, string, bool) {
	limit := maxUploadBytes(s.configManager.GetServerConfig())
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, http.StatusBadRequest, domain.NewValidationError("file", "multipart field \"file\" is required", nil))
		return nil, "", "", false
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, "", "", false
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, "", "", false
	}

	contentType := c.PostForm("content_type")
	if contentType == "" {
		contentType = fh.Header.Get("Content-Type")
	}
	return raw, fh.Filename, contentType, true
}

func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	code := domain.ErrCodeInvalidInput
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		code = domain.ErrCodeValidation
	}
	s.failWithCode(c, status, code, err.Error(), nil)
}

func (s *Server) failWithCode(c *gin.Context, status int, code, message string, cause error) {
	details := ""
	if cause != nil {
		details = cause.Error()
		if status >= http.StatusInternalServerError {
			s.logger(c).WithError(cause).Error(message)
		}
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func (s *Server) storageDisabled(c *gin.Context) {
	s.failWithCode(c, http.StatusServiceUnavailable, domain.ErrCodeStorage, "diagnostics storage is disabled", nil)
}

func (s *Server) logger(c *gin.Context) *logrus.Entry {
	return s.deps.Logger.WithField("correlation_id", c.GetString(middleware.CorrelationIDKey))
}

func renderReport(d *domain.Diagnostics) ReportView {
	r := report.FromDiagnostics(d)
	return ReportView{
		Text:   report.QualitySectionText(r),
		HTML:   report.QualitySectionHTML(r),
		Note:   report.UserNote(r),
		Labels: reasonLabels(d.Metrics.Reasons),
	}
}

func reasonLabels(reasons []domain.ReasonCode) []ReasonLabel {
	labels := make([]ReasonLabel, len(reasons))
	for i, r := range reasons {
		labels[i] = ReasonLabel{Code: r, Label: quality.HumanReason(r)}
	}
	return labels
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
