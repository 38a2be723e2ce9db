package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/textutil"
)

// CBCCodes are complete-blood-count item names. A panel with at least
// CBCThreshold of them is expected to carry CBCExpectedMinimum values.
var CBCCodes = map[string]struct{}{
	"WBC": {}, "RBC": {}, "HGB": {}, "HCT": {}, "PLT": {},
	"NE": {}, "NE%": {}, "LY": {}, "LY%": {}, "MO": {}, "MO%": {},
	"EO": {}, "EO%": {}, "BA": {}, "BA%": {}, "ESR": {},
	"NE_SEG": {}, "NE_STAB": {},
	"MCV": {}, "MCH": {}, "MCHC": {}, "RDW-SD": {}, "RDW-CV": {},
	"PDW": {}, "MPV": {}, "P-LCR": {},
}

const (
	CBCThreshold           = 8
	CBCExpectedMinimum     = 15
	GenericExpectedMinimum = 8

	// gluedRefMaxLen is the longest digit run a reference range may have
	// once separators are removed before it is taken for ref+value glue.
	gluedRefMaxLen = 10
	// maxRefTokens is the most whitespace-separated parts a sane
	// reference text has ("3.5 - 5.0" is three).
	maxRefTokens = 3
)

var (
	unitPower   = regexp.MustCompile(`\*10\^\d+`)
	simpleRange = regexp.MustCompile(`^\d{1,5}(\.\d+)?-\d{1,5}(\.\d+)?$`)
)

// DetectExpectedMinimum picks the expected value count for a panel.
func DetectExpectedMinimum(items []domain.Item) int {
	found := 0
	for _, it := range items {
		if _, ok := CBCCodes[it.Name]; ok {
			found++
		}
	}
	if found >= CBCThreshold {
		return CBCExpectedMinimum
	}
	return GenericExpectedMinimum
}

// IsSuspiciousItem reports whether an item with a value shows signs of OCR
// corruption: stray ^ * / in the printed name outside a *10^N unit, a
// reference range glued to the value, or a reference text that breaks into
// too many parts.
func IsSuspiciousItem(it domain.Item) bool {
	if strings.ContainsAny(it.RawName, "^*/") && !unitPower.MatchString(it.RawName) {
		return true
	}

	ref := it.RefText
	if ref == "" {
		return false
	}

	if it.HasValue() {
		combined := strings.NewReplacer("-", "", ".", "").Replace(ref)
		if utf8.RuneCountInString(combined) > gluedRefMaxLen &&
			!simpleRange.MatchString(strings.ReplaceAll(ref, " ", "")) {
			return true
		}
	}

	trimmed := strings.TrimSpace(ref)
	if strings.Contains(trimmed, " ") && len(strings.Fields(trimmed)) > maxRefTokens {
		return true
	}
	return false
}

// EvaluateItems classifies every item as error, suspicious or valid. When
// expectedMinimum is nil it is derived from the panel composition.
func EvaluateItems(items []domain.Item, expectedMinimum *int) domain.ParseQuality {
	minimum := DetectExpectedMinimum(items)
	if expectedMinimum != nil {
		minimum = *expectedMinimum
	}

	q := domain.ParseQuality{ExpectedMinimum: minimum}
	for _, it := range items {
		if !it.HasValue() {
			q.ErrorCount++
			continue
		}
		if IsSuspiciousItem(it) {
			q.SuspiciousCount++
			continue
		}
		q.ValidValueCount++
		if it.Ref != nil {
			q.ValidRefCount++
		}
	}

	q.CoverageScore = textutil.Round(float64(q.ValidValueCount)/float64(max(minimum, 1)), 3)
	return q
}

// BuildParseMetrics assembles the parse block of QualityMetrics. Counts come
// from q when it is available; otherwise every item with a value is valid
// and the remaining counts are zero.
func BuildParseMetrics(items []domain.Item, q *domain.ParseQuality) domain.ParseMetrics {
	pm := domain.ParseMetrics{ParsedItems: len(items)}
	if q != nil {
		pm.ValidValueCount = q.ValidValueCount
		pm.SuspiciousCount = q.SuspiciousCount
		pm.SanityOutlierCount = q.SanityOutlierCount
		pm.DedupDroppedCount = q.DuplicateDroppedCount
		return pm
	}

	for _, it := range items {
		if it.HasValue() {
			pm.ValidValueCount++
		}
	}
	return pm
}
