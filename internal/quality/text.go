// Package quality computes OCR-text and parsed-item quality metrics, folds
// them into the composite parse score and explains low scores with reason
// codes. Everything here is a pure function of its arguments.
package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/textutil"
)

// BiomarkerCodes is the fixed set of codes that mark a biomarker line.
var BiomarkerCodes = []string{
	"WBC", "RBC", "HGB", "HCT", "PLT", "MCV", "MCH", "MCHC",
	"RDW", "PDW", "MPV", "PCT",
	"NEU", "LYM", "MONO", "EOS", "BAS",
	"NE", "LY", "MO", "EO", "BA",
	"ALT", "AST", "GGT", "ALP",
	"TBIL", "DBIL", "IBIL",
	"CREA", "UREA", "CRP", "CRPN",
	"GLUC", "GLU", "HBA1C",
	"CHOL", "HDL", "LDL", "TRIG",
	"TSH", "FT3", "FT4", "T3", "T4",
	"FE", "FERR", "VIT",
	"ESR",
}

var (
	garbageCluster  = regexp.MustCompile(`[�□■▪▫●○◆◇★☆]{2,}|\|{3,}|\*{3,}|#{3,}|~{3,}`)
	informativeChar = regexp.MustCompile(`[A-Za-zА-Яа-яЁё0-9]`)
	anyDigit        = regexp.MustCompile(`\d`)
)

// ComputeTextMetrics measures raw OCR text. Blank text yields all zeros.
func ComputeTextMetrics(text string) domain.OCRMetrics {
	if textutil.IsBlank(text) {
		return domain.OCRMetrics{}
	}

	lines := textutil.SplitLines(textutil.Normalize(text))
	lineCount := len(lines)

	totalLen := 0
	digitLines, biomarkerLines, noiseLines := 0, 0, 0
	for _, line := range lines {
		totalLen += utf8.RuneCountInString(line)

		if IsNoiseLine(line) {
			noiseLines++
			continue
		}
		if anyDigit.MatchString(line) {
			digitLines++
		}
		if IsBiomarkerLine(line) {
			biomarkerLines++
		}
	}

	denom := float64(max(1, lineCount))
	return domain.OCRMetrics{
		LineCount:              lineCount,
		AvgLineLen:             textutil.Round(float64(totalLen)/denom, 2),
		DigitLineRatio:         textutil.Round(float64(digitLines)/denom, 4),
		BiomarkerLineRatio:     textutil.Round(float64(biomarkerLines)/denom, 4),
		NoiseLineRatio:         textutil.Round(float64(noiseLines)/denom, 4),
		NumericCandidatesCount: digitLines,
	}
}

// IsNoiseLine reports whether a line carries no information: blank, a run
// of OCR garbage symbols, or no letter or digit at all.
func IsNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if garbageCluster.MatchString(trimmed) {
		return true
	}
	return !informativeChar.MatchString(trimmed)
}

// IsBiomarkerLine reports whether a line contains a known biomarker code as
// a whole token. Only Latin and Cyrillic letters delimit a code, so "HBA1C,"
// and "(WBC)" count while "WBCX" does not.
func IsBiomarkerLine(line string) bool {
	upper := strings.ToUpper(line)
	for _, code := range BiomarkerCodes {
		if containsToken(upper, code) {
			return true
		}
	}
	return false
}

func containsToken(s, token string) bool {
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !textutil.IsCyrLatLetter(before)) &&
			(end == len(s) || !textutil.IsCyrLatLetter(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}
