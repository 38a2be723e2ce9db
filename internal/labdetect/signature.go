package labdetect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/labqc-mcp-server/internal/domain"
)

// Rule is the matching half of a Signature. It is implemented only by
// Literal, Regex and Predicate.
type Rule interface {
	fires(text, lower string) bool
	pattern() string
}

// Literal fires when its text occurs anywhere in the document, ignoring case.
type Literal struct {
	Text  string
	lower string
}

// NewLiteral builds a case-insensitive substring rule.
func NewLiteral(text string) Literal {
	return Literal{Text: text, lower: strings.ToLower(text)}
}

func (l Literal) fires(_, lower string) bool {
	return strings.Contains(lower, l.lower)
}

func (l Literal) pattern() string { return l.Text }

// Regex fires when the expression matches at least MinCount times.
// Matching is case-insensitive and multiline; matches do not overlap.
type Regex struct {
	Source   string
	MinCount int
	expr     *regexp.Regexp
}

// NewRegex compiles source with the (?im) flags. A MinCount below 1 means 1.
func NewRegex(source string, minCount int) (Regex, error) {
	expr, err := regexp.Compile("(?im)" + source)
	if err != nil {
		return Regex{}, fmt.Errorf("compiling signature regex %q: %w", source, err)
	}
	if minCount < 1 {
		minCount = 1
	}
	return Regex{Source: source, MinCount: minCount, expr: expr}, nil
}

func (r Regex) fires(text, _ string) bool {
	return len(r.expr.FindAllStringIndex(text, -1)) >= r.MinCount
}

func (r Regex) pattern() string { return r.Source }

// Predicate fires when a registered text predicate returns true.
type Predicate struct {
	Name  string
	check PredicateFunc
}

// NewPredicate resolves name against the predicate registry.
func NewPredicate(name string) (Predicate, error) {
	fn, ok := LookupPredicate(name)
	if !ok {
		return Predicate{}, fmt.Errorf("%w: %q", domain.ErrUnknownPredicate, name)
	}
	return Predicate{Name: name, check: fn}, nil
}

func (p Predicate) fires(text, _ string) bool {
	return p.check(text)
}

func (p Predicate) pattern() string { return p.Name }

// Signature is one weighted detection rule.
type Signature struct {
	Kind   domain.SignatureKind
	Weight float64
	Rule   Rule
}

// Descriptor is the human-readable "kind:pattern" form recorded on a hit.
func (s Signature) Descriptor() string {
	return string(s.Kind) + ":" + s.Rule.pattern()
}
