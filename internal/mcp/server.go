// Package mcp exposes the laboratory quality-control pipeline as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/labqc-mcp-server/internal/app"
	"github.com/labqc-mcp-server/internal/domain"
)

// Transport names accepted by Serve.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server wraps the MCP SDK server around the assembled pipeline.
type Server struct {
	MCPServer *sdkmcp.Server

	app    *app.App
	logger *logrus.Logger
}

// NewServer creates an MCP server with every quality-control tool registered.
func NewServer(cfg domain.MCPConfig, a *app.App) *Server {
	name := cfg.ServerName
	if name == "" {
		name = "labqc-mcp-server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	s := &Server{app: a, logger: a.Logger}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()

	s.logger.WithFields(logrus.Fields{
		"server_name":    name,
		"server_version": version,
		"storage":        a.Store != nil,
	}).Info("MCP tools registered")
	return s
}

// Serve runs the server on the named transport until ctx is done or the
// client disconnects.
func (s *Server) Serve(ctx context.Context, transport string, port int) error {
	switch transport {
	case "", TransportStdio:
		s.logger.Info("Serving MCP over stdio")
		if err := s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case TransportHTTP:
		return s.serveHTTP(ctx, port)
	default:
		return fmt.Errorf("unknown MCP transport: %q", transport)
	}
}

// HTTPHandler returns the streamable HTTP endpoint for this server.
func (s *Server) HTTPHandler() http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return s.MCPServer
	}, nil)
}

func (s *Server) serveHTTP(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.HTTPHandler())

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("Serving MCP over streamable HTTP")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start MCP HTTP transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "detect_lab",
		Description: "Classify recognized lab report text as MEDSI, HELIX, INVITRO or UNKNOWN with a confidence and the signatures that fired.",
	}, s.handleDetectLab)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "text_metrics",
		Description: "Measure raw OCR text: line count, average line length, digit, biomarker and noise line ratios, numeric candidate lines.",
	}, s.handleTextMetrics)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_items",
		Description: "Evaluate parsed lab items: valid values, valid reference ranges, suspicious and outlier counts, coverage against an expected minimum.",
	}, s.handleEvaluateItems)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "parse_score",
		Description: "Fold text and parse metrics into the composite parse score (0-100, one decimal).",
	}, s.handleParseScore)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify_reasons",
		Description: "List the quality reason codes that fire for the given metrics, in priority order, with user-facing labels.",
	}, s.handleClassifyReasons)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "decide_rerun",
		Description: "Decide whether a first OCR pass earns a corrective rerun and, when a second pass is given, whether it beats the first.",
	}, s.handleDecideRerun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "decide_interpretation",
		Description: "Gate the LLM interpretation call on valid value count and parse score. Returns CALL, SKIP_LOW_VALUES or SKIP_LOW_SCORE.",
	}, s.handleDecideInterpretation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "preflight",
		Description: "Choose the first-pass OCR preprocessing mode for a document from its name, content type and optional PDF text layer.",
	}, s.handlePreflight)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyze_text",
		Description: "Run the full pipeline on recognized text and return the diagnostics bundle with the rendered quality report. The bundle is stored when storage is enabled.",
	}, s.handleAnalyzeText)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_diagnostics",
		Description: "Fetch a stored diagnostics bundle and its quality report by document id.",
	}, s.handleGetDiagnostics)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_diagnostics",
		Description: "List stored diagnostics bundles, newest first.",
	}, s.handleListDiagnostics)
}
