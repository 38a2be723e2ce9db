package quality

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestComputeTextMetrics_Blank(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		assert.Equal(t, domain.OCRMetrics{}, ComputeTextMetrics(text))
	}
}

func TestComputeTextMetrics_Report(t *testing.T) {
	text := strings.Join([]string{
		"Общий анализ крови",
		"WBC 5.1 10*9/л",
		"RBC 4.6 10*12/л",
		"|||||",
		"",
		"Подпись врача",
	}, "\n")

	got := ComputeTextMetrics(text)
	want := domain.OCRMetrics{
		LineCount:              6,
		AvgLineLen:             10.83,
		DigitLineRatio:         0.3333,
		BiomarkerLineRatio:     0.3333,
		NoiseLineRatio:         0.3333,
		NumericCandidatesCount: 2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeTextMetrics() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeTextMetrics_TrailingNewline(t *testing.T) {
	got := ComputeTextMetrics("HGB 140\nPLT 250\n")
	assert.Equal(t, 2, got.LineCount)
	assert.Equal(t, 1.0, got.DigitLineRatio)
	assert.Equal(t, 2, got.NumericCandidatesCount)
	assert.Equal(t, 7.0, got.AvgLineLen)
}

func TestComputeTextMetrics_RatiosInRange(t *testing.T) {
	inputs := []string{
		"a",
		"1\n2\n3",
		"★★ ★★\n###\n~~~",
		"Гемоглобин (HGB) 145 г/л\nСОЭ 7 мм/ч\n\n\n",
	}
	for _, in := range inputs {
		m := ComputeTextMetrics(in)
		for _, r := range []float64{m.DigitLineRatio, m.BiomarkerLineRatio, m.NoiseLineRatio} {
			assert.GreaterOrEqual(t, r, 0.0, in)
			assert.LessOrEqual(t, r, 1.0, in)
		}
		assert.GreaterOrEqual(t, m.NumericCandidatesCount, 0)
	}
}

func TestIsNoiseLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"||||", true},
		{"***", true},
		{"--- . ---", true},
		{"□□ Гемоглобин", true},
		{"Гемоглобин 145", false},
		{"WBC", false},
		{"7", false},
		{"| a |", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNoiseLine(tt.line))
		})
	}
}

func TestIsBiomarkerLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"wbc 5.1", true},
		{"(HGB) 140", true},
		{"HbA1c, %", true},
		{"Лейкоциты WBC", true},
		{"WBCX 5.1", false},
		{"ФЕРРИТИН", false},
		{"NE% 55", true},
		{"ESRЖ", false},
		{"Гемоглобин", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBiomarkerLine(tt.line))
		})
	}
}
