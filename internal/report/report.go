// Package report renders already computed quality diagnostics as Russian
// text for the patient-facing report. It makes no decisions.
package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/quality"
)

// NoData is rendered in place of the section when metrics are missing.
const NoData = "Нет данных о качестве распознавания."

// QualityReport is the view the formatters render. Any part may be nil.
type QualityReport struct {
	Metrics *domain.QualityMetrics
	Rerun   *domain.RerunInfo
	Gate    *domain.GateDecision
}

// FromDiagnostics builds a report view over a stored diagnostics bundle.
func FromDiagnostics(d *domain.Diagnostics) *QualityReport {
	if d == nil {
		return nil
	}
	return &QualityReport{
		Metrics: &d.Metrics,
		Rerun:   &d.Rerun,
		Gate:    &d.Gate,
	}
}

// QualitySectionText renders the multi-line quality section.
func QualitySectionText(r *QualityReport) string {
	if r == nil || r.Metrics == nil {
		return NoData
	}

	lines := []string{
		fmt.Sprintf("Качество распознавания: %s/100", formatNumber(r.Metrics.ParseScore)),
	}

	if len(r.Metrics.Reasons) > 0 {
		labels := make([]string, 0, len(r.Metrics.Reasons))
		for _, code := range r.Metrics.Reasons {
			labels = append(labels, quality.HumanReason(code))
		}
		lines = append(lines, "Замечания: "+strings.Join(labels, "; "))
	} else {
		lines = append(lines, "Замечания: нет критичных замечаний")
	}

	if r.Rerun != nil {
		lines = append(lines, rerunText(r.Rerun))
	}
	if r.Gate != nil {
		lines = append(lines, gateText(r.Gate))
	}

	return strings.Join(lines, "\n")
}

// QualitySectionHTML renders the section as escaped <p> paragraphs.
func QualitySectionHTML(r *QualityReport) string {
	var paragraphs []string
	for _, line := range strings.Split(QualitySectionText(r), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		paragraphs = append(paragraphs, "<p>"+html.EscapeString(line)+"</p>")
	}
	return strings.Join(paragraphs, "\n")
}

// UserNote returns a short note for the chat reply, or "" when there is
// nothing to say.
func UserNote(r *QualityReport) string {
	if r == nil || r.Metrics == nil {
		return ""
	}

	var parts []string
	if r.Gate != nil {
		switch r.Gate.Decision {
		case domain.SKIP_LOW_VALUES:
			parts = append(parts, "ИИ-расшифровка не выполнена: недостаточно надёжно распознанных показателей.")
		case domain.SKIP_LOW_SCORE:
			parts = append(parts, "ИИ-расшифровка не выполнена: низкое качество распознавания документа.")
		}
	}

	if len(r.Metrics.Reasons) > 0 {
		parts = append(parts,
			"Рекомендация: попробуйте загрузить PDF-файл вместо фото, "+
				"либо сделайте снимок без бликов и крупнее.")
	}

	return strings.Join(parts, "\n")
}

func rerunText(info *domain.RerunInfo) string {
	if !info.Performed {
		return "Повтор OCR: не потребовался"
	}

	after := "?"
	if info.ScoreAfter != nil {
		after = formatNumber(*info.ScoreAfter)
	}
	chosen := string(info.Chosen)
	if chosen == "" {
		chosen = "?"
	}
	return fmt.Sprintf("Повтор OCR: выполнен (score до: %s, после: %s, выбран прогон: %s)",
		formatNumber(info.ScoreBefore), after, chosen)
}

func gateText(g *domain.GateDecision) string {
	switch g.Decision {
	case domain.CALL:
		return "ИИ-расшифровка (LLM): выполнена"
	case domain.SKIP_LOW_VALUES:
		return "ИИ-расшифровка (LLM): пропущена — недостаточно валидных показателей (нужно ≥ 5)"
	case domain.SKIP_LOW_SCORE:
		return fmt.Sprintf("ИИ-расшифровка (LLM): пропущена — низкое качество распознавания (score %s, порог %s)",
			formatNumber(g.ParseScore), formatNumber(g.MinParseScore))
	default:
		return fmt.Sprintf("ИИ-расшифровка (LLM): статус неизвестен (%s)", g.Decision)
	}
}

// formatNumber prints scores with at least one decimal: 53 -> "53.0".
func formatNumber(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
