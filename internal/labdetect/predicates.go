package labdetect

import (
	"regexp"
	"strings"

	"github.com/labqc-mcp-server/internal/textutil"
)

// PredicateFunc inspects the whole document text.
type PredicateFunc func(text string) bool

// Registered predicate names.
const (
	PredicateMedsiFormat = "is_medsi_format"
	PredicateHelixPairs  = "helix_pairs"
)

const (
	minHelixPairs         = 5
	minMedsiCodeLines     = 3
	minMedsiCodeWithUnits = 2
)

var (
	helixNameLetters = regexp.MustCompile(`[A-Za-zА-Яа-я]{3,}`)
	helixValueLine   = regexp.MustCompile(`^[↑↓+]?\s*\d`)
	leadingDigit     = regexp.MustCompile(`^\d`)

	medsiCodeLine = regexp.MustCompile(`^\([\p{L}\p{N}_]+\)`)
	medsiUnits    = regexp.MustCompile(`10\*(9|12)/л|мм/час`)
)

// LookupPredicate returns the predicate registered under name. The set is
// fixed at compile time.
func LookupPredicate(name string) (PredicateFunc, bool) {
	switch name {
	case PredicateMedsiFormat:
		return IsMedsiFormat, true
	case PredicateHelixPairs:
		return func(text string) bool { return CountHelixPairs(text) >= minHelixPairs }, true
	default:
		return nil, false
	}
}

// PredicateNames lists the registry in a stable order.
func PredicateNames() []string {
	return []string{PredicateMedsiFormat, PredicateHelixPairs}
}

// CountHelixPairs counts adjacent two-line name/value pairs: a line with a
// word of at least three letters that does not start with a digit, followed
// by a line whose first significant character is a digit, optionally after
// an arrow or plus flag.
func CountHelixPairs(text string) int {
	lines := textutil.SplitLines(text)
	count := 0
	for i := 0; i+1 < len(lines); i++ {
		name := strings.TrimSpace(lines[i])
		value := strings.TrimSpace(lines[i+1])
		if name == "" || value == "" {
			continue
		}
		if !helixNameLetters.MatchString(name) || leadingDigit.MatchString(name) {
			continue
		}
		if helixValueLine.MatchString(value) {
			count++
		}
	}
	return count
}

// CountMedsiCodeLines counts lines that open with a parenthesized code,
// e.g. "(WBC) Лейкоциты".
func CountMedsiCodeLines(text string) int {
	count := 0
	for _, line := range textutil.SplitLines(text) {
		if medsiCodeLine.MatchString(strings.TrimSpace(line)) {
			count++
		}
	}
	return count
}

// IsMedsiFormat reports whether the text has the MEDSI table shape:
// several "(CODE) name" rows, or at least two of them next to MEDSI-style
// units such as 10*9/л or мм/час.
func IsMedsiFormat(text string) bool {
	codes := CountMedsiCodeLines(text)
	if codes >= minMedsiCodeLines {
		return true
	}
	return codes >= minMedsiCodeWithUnits && medsiUnits.MatchString(text)
}
