// Package domain contains the core entities shared by the lab report
// quality-control pipeline: laboratory detection results, parsed items,
// quality metrics and the decisions derived from them.
//
// Every type here is a plain value. Nothing in this package performs I/O.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// LabType identifies the laboratory that produced a report.
type LabType string

const (
	MEDSI   LabType = "medsi"
	HELIX   LabType = "helix"
	INVITRO LabType = "invitro"
	UNKNOWN LabType = "unknown"
)

// SignatureKind describes what part of a report a signature looks at.
type SignatureKind string

const (
	KindDomain      SignatureKind = "domain"
	KindName        SignatureKind = "name"
	KindStructural  SignatureKind = "structural"
	KindHeader      SignatureKind = "header"
	KindCodePattern SignatureKind = "code_pattern"
)

var (
	ErrInvalidLabType       = errors.New("invalid lab type")
	ErrInvalidSignatureKind = errors.New("invalid signature kind")
)

// IsValid reports whether l is one of the known lab types.
func (l LabType) IsValid() bool {
	switch l {
	case MEDSI, HELIX, INVITRO, UNKNOWN:
		return true
	default:
		return false
	}
}

// String returns the string representation of LabType
func (l LabType) String() string {
	return string(l)
}

// ParseLabType accepts both the lower-case wire form and upper-case names.
func ParseLabType(s string) (LabType, error) {
	l := LabType(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabType, s)
	}
	return l, nil
}

// IsValid reports whether k is one of the known signature kinds.
func (k SignatureKind) IsValid() bool {
	switch k {
	case KindDomain, KindName, KindStructural, KindHeader, KindCodePattern:
		return true
	default:
		return false
	}
}

// String returns the string representation of SignatureKind
func (k SignatureKind) String() string {
	return string(k)
}

// DetectionResult is the outcome of one detection call. Confidence is
// always within [0, 1].
type DetectionResult struct {
	LabType           LabType  `json:"lab_type"`
	Confidence        float64  `json:"confidence"`
	MatchedSignatures []string `json:"matched_signatures"`
}

// UnknownDetection is the result returned when no profile qualifies.
func UnknownDetection() DetectionResult {
	return DetectionResult{
		LabType:           UNKNOWN,
		Confidence:        0.0,
		MatchedSignatures: []string{},
	}
}

// RefRange is a parsed reference interval. Either bound may be absent,
// e.g. "< 5.0" carries only High and a comparator.
type RefRange struct {
	Low        *float64 `json:"low,omitempty"`
	High       *float64 `json:"high,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
}

// Item is one lab value recognized by an external item parser. The
// quality code only reads these fields.
type Item struct {
	Name       string    `json:"name"`
	RawName    string    `json:"raw_name"`
	Value      *float64  `json:"value"`
	Ref        *RefRange `json:"ref,omitempty"`
	RefText    string    `json:"ref_text,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status,omitempty"`
}

// HasValue reports whether the parser produced a numeric value.
func (i Item) HasValue() bool {
	return i.Value != nil
}
