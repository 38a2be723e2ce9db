package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labqc-mcp-server/internal/labdetect"
	"github.com/labqc-mcp-server/internal/pipeline"
	"github.com/labqc-mcp-server/internal/quality"
	"github.com/labqc-mcp-server/internal/report"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file|-]",
	Short: "Detect the laboratory of a recognized report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDetect,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics [file|-]",
	Short: "Print text quality metrics of a recognized report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMetrics,
}

var analyzeFlags struct {
	format  string
	noStore bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Run the full quality pipeline on documents",
	Long: `Runs detection, candidate extraction, parsing, scoring, the rerun
controller and the interpretation gate on each document. Text files are
analyzed as recognized text, PDFs through their text layer. Use - for stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.format, "format", "json", "output format: json or text")
	f.BoolVar(&analyzeFlags.noStore, "no-store", false, "do not persist the diagnostics")
}

func runDetect(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}

	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()
	quietLogger(cfg)
	cfg.Storage.Driver = "none"

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Matcher.Detect(text)
	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"lab_type":           result.LabType,
		"confidence":         result.Confidence,
		"matched_signatures": result.MatchedSignatures,
		"legacy_format":      labdetect.LegacyFormat(result.LabType),
	})
}

func runMetrics(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), quality.ComputeTextMetrics(text))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFlags.format != "json" && analyzeFlags.format != "text" {
		return fmt.Errorf("unknown format %q", analyzeFlags.format)
	}

	docs := make([]pipeline.Document, 0, len(args))
	for _, arg := range args {
		doc, err := loadDocument(cmd, arg)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()
	quietLogger(cfg)
	if analyzeFlags.noStore {
		cfg.Storage.Driver = "none"
	}

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Pipeline.ProcessBatch(cmd.Context(), docs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		d := res.Diagnostics
		if a.Store != nil {
			if err := a.Store.Save(cmd.Context(), &d); err != nil {
				a.Logger.WithError(err).WithField("document_id", d.DocumentID).Warn("Failed to store diagnostics")
			}
		}

		if analyzeFlags.format == "text" {
			r := report.FromDiagnostics(&d)
			fmt.Fprintf(out, "== %s (%s, %s)\n", displayName(d.Filename), d.DocumentID, d.Detection.LabType)
			fmt.Fprintln(out, report.QualitySectionText(r))
			if note := report.UserNote(r); note != "" {
				fmt.Fprintln(out, note)
			}
			fmt.Fprintln(out)
			continue
		}
		if err := writeJSON(out, d); err != nil {
			return err
		}
	}
	return nil
}

func loadDocument(cmd *cobra.Command, arg string) (pipeline.Document, error) {
	if arg == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		text := string(raw)
		return pipeline.Document{Filename: "stdin", Text: &text}, nil
	}

	raw, err := os.ReadFile(arg)
	if err != nil {
		return pipeline.Document{}, err
	}
	name := filepath.Base(arg)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".txt" || ext == "" {
		text := string(raw)
		return pipeline.Document{Filename: name, Text: &text}, nil
	}
	return pipeline.Document{Filename: name, ContentType: mime.TypeByExtension(ext), Raw: raw}, nil
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func displayName(name string) string {
	if name == "" {
		return "document"
	}
	return name
}
