package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/quality"
	"github.com/labqc-mcp-server/internal/textutil"
)

var anyDigit = regexp.MustCompile(`\d`)

// UniversalExtractor keeps the informative lines that carry a number.
var UniversalExtractor = domain.CandidateExtractorFunc(func(text string) string {
	var kept []string
	for _, line := range textutil.SplitLines(textutil.Normalize(text)) {
		if quality.IsNoiseLine(line) || !anyDigit.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimSpace(line))
	}
	return strings.Join(kept, "\n")
})

var (
	numberToken = regexp.MustCompile(`^[↑↓+]?(\d+(?:[.,]\d+)?)$`)
	rangeToken  = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)-(\d+(?:[.,]\d+)?)$`)
	bareNumber  = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	hasLetter   = regexp.MustCompile(`\pL`)

	codeInParens = regexp.MustCompile(`\(([\p{L}\p{N}_%-]+)\)`)
	leadingCode  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_%-]*)`)
)

// LineParser turns one candidate line per item into lab items. It reads
// "Name [flag] value [unit] [low-high]" with unit and range in either order
// and leaves the value empty when none can be found.
var LineParser = domain.ItemParserFunc(func(candidates string) []domain.Item {
	var items []domain.Item
	for _, line := range textutil.SplitLines(candidates) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		items = append(items, parseLine(line))
	}
	return items
})

func parseLine(line string) domain.Item {
	fields := strings.Fields(line)

	valueAt := -1
	for i, f := range fields {
		if i > 0 && numberToken.MatchString(f) {
			valueAt = i
			break
		}
	}

	nameEnd := valueAt
	if valueAt < 0 {
		nameEnd = len(fields)
	} else if fields[valueAt-1] == "↑" || fields[valueAt-1] == "↓" {
		nameEnd--
	}
	rawName := strings.Join(fields[:nameEnd], " ")
	if valueAt < 0 || !hasLetter.MatchString(rawName) {
		return domain.Item{Name: itemCode(line), RawName: line}
	}

	it := domain.Item{
		Name:    itemCode(rawName),
		RawName: rawName,
		Value:   parseNumber(numberToken.FindStringSubmatch(fields[valueAt])[1]),
	}

	rest := fields[valueAt+1:]
	for i := 0; i < len(rest); i++ {
		if it.RefText == "" {
			if m := rangeToken.FindStringSubmatch(rest[i]); m != nil {
				it.RefText = rest[i]
				it.Ref = &domain.RefRange{Low: parseNumber(m[1]), High: parseNumber(m[2])}
				continue
			}
			if i+2 < len(rest) && rest[i+1] == "-" && bareNumber.MatchString(rest[i]) && bareNumber.MatchString(rest[i+2]) {
				it.RefText = strings.Join(rest[i:i+3], " ")
				it.Ref = &domain.RefRange{Low: parseNumber(rest[i]), High: parseNumber(rest[i+2])}
				i += 2
				continue
			}
		}
		if it.Unit == "" {
			it.Unit = rest[i]
		}
	}
	return it
}

func itemCode(rawName string) string {
	if m := codeInParens.FindStringSubmatch(rawName); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := leadingCode.FindStringSubmatch(rawName); m != nil {
		return strings.ToUpper(m[1])
	}
	return strings.TrimSpace(rawName)
}

func parseNumber(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
