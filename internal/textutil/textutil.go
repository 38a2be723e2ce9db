// Package textutil holds the small text helpers shared by detection and
// quality metrics: Unicode normalization, line splitting and decimal rounding.
package textutil

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize composes the text to NFC so that letters written with combining
// marks (common in PDF text layers) compare equal to their precomposed form.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// SplitLines splits text on every line boundary the OCR engines emit:
// \n, \r\n, \r, \v, \f, the file/group/record separators, NEL and the
// Unicode line and paragraph separators. A trailing boundary does not
// produce an empty last line and empty text yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	var lines []string
	start := 0
	for i, r := range text {
		switch r {
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				start = i + 2
			} else {
				start = i + 1
			}
		case '\n':
			if i > 0 && text[i-1] == '\r' {
				continue
			}
			lines = append(lines, text[start:i])
			start = i + 1
		case '\v', '\f', '\x1c', '\x1d', '\x1e':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\u0085', '\u2028', '\u2029':
			lines = append(lines, text[start:i])
			start = i + len(string(r))
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// IsBlank reports whether text is empty or only whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Round rounds x to the given number of decimal places through its
// correctly rounded decimal form: 0.125 becomes 0.12, 0.675 becomes 0.68.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// IsCyrLatLetter reports whether r is a Latin or Russian Cyrillic letter.
// Code boundaries in lab reports are delimited by these letters only;
// digits and punctuation do not break a code.
func IsCyrLatLetter(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 'А' && r <= 'я', r == 'Ё', r == 'ё':
		return true
	default:
		return false
	}
}
