package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labqc-mcp-server/internal/app"
	"github.com/labqc-mcp-server/internal/domain"
)

const medsiText = `medsi.ru
(WBC) Лейкоциты 5.1 10*9/л 4.0-9.0
(RBC) Эритроциты 4.6 10*12/л 4.3-5.7
(HGB) Гемоглобин 141 г/л 132-173
(HCT) Гематокрит 42.1 % 39-49
(PLT) Тромбоциты 250 10*9/л 150-400
(ESR) СОЭ 7 мм/час 2-15`

func testConfig(t *testing.T, driver string) *domain.Config {
	t.Helper()
	return &domain.Config{
		Storage: domain.StorageConfig{
			Driver:     driver,
			SQLitePath: filepath.Join(t.TempDir(), "diagnostics.db"),
		},
		Cache:    domain.CacheConfig{MaxItems: 10, DefaultTTL: time.Hour},
		Quality:  domain.DefaultQualityConfig(),
		Pipeline: domain.PipelineConfig{Workers: 1},
		MCP:      domain.MCPConfig{ServerName: "labqc-test", ServerVersion: "v0.0.1"},
	}
}

func newTestServer(t *testing.T, driver string) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := testConfig(t, driver)
	a, err := app.New(context.Background(), cfg, logger, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return NewServer(cfg.MCP, a)
}

func connectInMemory(t *testing.T, ctx context.Context, srv *Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any, dst any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "%s returned error: %s", name, textOf(res))
	require.NoError(t, json.Unmarshal([]byte(textOf(res)), dst))
}

func callToolError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.True(t, res.IsError, "%s should fail", name)
	return textOf(res)
}

func textOf(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func ocrArgs(lines, candidates int, noise float64) map[string]any {
	return map[string]any{
		"line_count":               lines,
		"avg_line_len":             30.0,
		"digit_line_ratio":         0.5,
		"biomarker_line_ratio":     0.5,
		"noise_line_ratio":         noise,
		"numeric_candidates_count": candidates,
	}
}

func parseArgs(parsed, valid int) map[string]any {
	return map[string]any{
		"parsed_items":         parsed,
		"valid_value_count":    valid,
		"suspicious_count":     0,
		"sanity_outlier_count": 0,
		"dedup_dropped_count":  0,
	}
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"detect_lab", "text_metrics", "evaluate_items", "parse_score", "classify_reasons",
		"decide_rerun", "decide_interpretation", "preflight",
		"analyze_text", "get_diagnostics", "list_diagnostics",
	}, names)
}

func TestServer_DetectLab(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var out detectLabOutput
	callTool(t, ctx, session, "detect_lab", map[string]any{"text": medsiText}, &out)
	assert.Equal(t, domain.MEDSI, out.LabType)
	assert.Equal(t, "medsi", out.LegacyFormat)
	assert.NotEmpty(t, out.MatchedSignatures)

	callTool(t, ctx, session, "detect_lab", map[string]any{"text": ""}, &out)
	assert.Equal(t, domain.UNKNOWN, out.LabType)
	assert.Equal(t, 0.0, out.Confidence)
}

func TestServer_TextMetrics(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var out domain.OCRMetrics
	callTool(t, ctx, session, "text_metrics", map[string]any{"text": medsiText}, &out)
	assert.Equal(t, 7, out.LineCount)
	assert.Equal(t, 6, out.NumericCandidatesCount)
	assert.Equal(t, 0.0, out.NoiseLineRatio)
}

func TestServer_EvaluateItems(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	items := []any{
		map[string]any{"name": "Гемоглобин", "raw_name": "HGB", "value": 141.0, "confidence": 1.0},
		map[string]any{"name": "Лейкоциты", "raw_name": "WBC", "value": nil, "confidence": 0.5},
	}

	var out evaluateItemsOutput
	callTool(t, ctx, session, "evaluate_items", map[string]any{"items": items, "expected_minimum": 2}, &out)
	assert.Equal(t, 1, out.Quality.ValidValueCount)
	assert.Equal(t, 2, out.Quality.ExpectedMinimum)
	assert.Equal(t, 2, out.Parse.ParsedItems)
	assert.Equal(t, 1, out.Parse.ValidValueCount)

	msg := callToolError(t, ctx, session, "evaluate_items", map[string]any{"items": items, "expected_minimum": -1})
	assert.Contains(t, msg, "expected_minimum")
}

func TestServer_ParseScoreAndReasons(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var score parseScoreOutput
	callTool(t, ctx, session, "parse_score", map[string]any{
		"ocr":   ocrArgs(20, 12, 0),
		"parse": parseArgs(12, 12),
	}, &score)
	assert.Equal(t, 100.0, score.ParseScore)
	assert.Equal(t, 1.0, score.CoverageRatio)

	var reasons classifyReasonsOutput
	callTool(t, ctx, session, "classify_reasons", map[string]any{
		"ocr":   ocrArgs(20, 20, 0.6),
		"parse": parseArgs(1, 1),
	}, &reasons)
	assert.Equal(t, []domain.ReasonCode{domain.HIGH_NOISE, domain.LOW_COVERAGE}, reasons.Reasons)
	assert.Equal(t, "HIGH_NOISE, LOW_COVERAGE", reasons.Summary)
	require.Len(t, reasons.Labels, 2)

	callTool(t, ctx, session, "classify_reasons", map[string]any{
		"ocr":   ocrArgs(20, 12, 0),
		"parse": parseArgs(12, 12),
	}, &reasons)
	assert.Empty(t, reasons.Reasons)
	assert.Equal(t, "", reasons.Summary)
}

func TestServer_DecideRerun(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tests := []struct {
		name        string
		args        map[string]any
		shouldRerun bool
		better      *bool
	}{
		{
			name:        "below threshold",
			args:        map[string]any{"first": map[string]any{"parse_score": 44.99}},
			shouldRerun: true,
		},
		{
			name:        "at threshold",
			args:        map[string]any{"first": map[string]any{"parse_score": 45.0}},
			shouldRerun: false,
		},
		{
			name: "rerun wins on valid values",
			args: map[string]any{
				"first":  map[string]any{"parse_score": 30.0, "valid_value_count": 2},
				"second": map[string]any{"parse_score": 30.0, "valid_value_count": 3},
			},
			shouldRerun: true,
			better:      boolPtr(true),
		},
		{
			name: "identical keeps first",
			args: map[string]any{
				"first":  map[string]any{"parse_score": 30.0},
				"second": map[string]any{"parse_score": 30.0},
			},
			shouldRerun: true,
			better:      boolPtr(false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out decideRerunOutput
			callTool(t, ctx, session, "decide_rerun", tt.args, &out)
			assert.Equal(t, tt.shouldRerun, out.ShouldRerun)
			assert.Equal(t, 45.0, out.MinScore)
			assert.Equal(t, tt.better, out.RerunIsBetter)
		})
	}
}

func TestServer_DecideInterpretation(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tests := []struct {
		count    int
		score    float64
		expected domain.GateDecisionCode
	}{
		{5, 55.0, domain.CALL},
		{5, 54.99, domain.SKIP_LOW_SCORE},
		{4, 100.0, domain.SKIP_LOW_VALUES},
	}

	for _, tt := range tests {
		var out domain.GateDecision
		callTool(t, ctx, session, "decide_interpretation", map[string]any{
			"valid_value_count": tt.count,
			"parse_score":       tt.score,
		}, &out)
		assert.Equal(t, tt.expected, out.Decision)
		assert.Equal(t, 55.0, out.MinParseScore)
	}
}

func TestServer_Preflight(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var out domain.PreflightDecision
	callTool(t, ctx, session, "preflight", map[string]any{"filename": "photo.HEIC", "content_type": "image/jpeg; q=1"}, &out)
	assert.True(t, out.AdaptiveThreshold)
	assert.Equal(t, domain.IMAGE_LIKE_INPUT, out.Reason)

	callTool(t, ctx, session, "preflight", map[string]any{"filename": "report.pdf", "pdf_direct_text": ""}, &out)
	assert.Equal(t, domain.PDF_EMPTY_TEXT_LAYER, out.Reason)

	callTool(t, ctx, session, "preflight", map[string]any{"filename": "report.pdf"}, &out)
	assert.False(t, out.AdaptiveThreshold)
	assert.Equal(t, domain.PRE_FLIGHT_DEFAULT, out.Reason)
}

func TestServer_AnalyzeAndFetch(t *testing.T) {
	srv := newTestServer(t, "sqlite")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var analyzed diagnosticsView
	callTool(t, ctx, session, "analyze_text", map[string]any{
		"text":        medsiText,
		"document_id": "doc-1",
		"filename":    "report.txt",
	}, &analyzed)
	require.NotNil(t, analyzed.Diagnostics)
	assert.True(t, analyzed.Stored)
	assert.Equal(t, "doc-1", analyzed.Diagnostics.DocumentID)
	assert.Equal(t, 85.0, analyzed.Diagnostics.Metrics.ParseScore)
	assert.Equal(t, domain.CALL, analyzed.Diagnostics.Gate.Decision)
	assert.Contains(t, analyzed.ReportText, "85.0/100")

	var fetched diagnosticsView
	callTool(t, ctx, session, "get_diagnostics", map[string]any{"document_id": "doc-1"}, &fetched)
	require.NotNil(t, fetched.Diagnostics)
	assert.Equal(t, 6, fetched.Diagnostics.ItemCount)

	var page listView
	callTool(t, ctx, session, "list_diagnostics", map[string]any{}, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, defaultListLimit, page.Limit)
	require.Len(t, page.Diagnostics, 1)

	callToolError(t, ctx, session, "get_diagnostics", map[string]any{"document_id": "missing"})
	callToolError(t, ctx, session, "list_diagnostics", map[string]any{"limit": 1000})
}

func TestServer_StorageDisabled(t *testing.T) {
	srv := newTestServer(t, "none")
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	var analyzed diagnosticsView
	callTool(t, ctx, session, "analyze_text", map[string]any{"text": medsiText, "document_id": "doc-2"}, &analyzed)
	assert.False(t, analyzed.Stored)

	var fetched diagnosticsView
	callTool(t, ctx, session, "get_diagnostics", map[string]any{"document_id": "doc-2"}, &fetched)
	assert.Equal(t, "doc-2", fetched.Diagnostics.DocumentID)

	msg := callToolError(t, ctx, session, "list_diagnostics", map[string]any{})
	assert.Contains(t, msg, "disabled")
}

func TestServer_ServeUnknownTransport(t *testing.T) {
	srv := newTestServer(t, "none")
	assert.Error(t, srv.Serve(context.Background(), "carrier-pigeon", 0))
}

func boolPtr(b bool) *bool { return &b }
