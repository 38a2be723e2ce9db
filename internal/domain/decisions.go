package domain

// RerunChoice names the pass whose metrics were kept.
type RerunChoice string

const (
	ChosenFirst RerunChoice = "first"
	ChosenRerun RerunChoice = "rerun"
)

// RerunReasonLowParseScore is the only reason a rerun is performed.
const RerunReasonLowParseScore = "LOW_PARSE_SCORE"

// RerunInfo records what the rerun controller did for one document.
type RerunInfo struct {
	Performed   bool        `json:"performed"`
	Reason      *string     `json:"reason"`
	ScoreBefore float64     `json:"score_before"`
	ScoreAfter  *float64    `json:"score_after"`
	Chosen      RerunChoice `json:"chosen"`
}

// GateDecisionCode is the outcome of the interpretation gate.
type GateDecisionCode string

const (
	CALL            GateDecisionCode = "CALL"
	SKIP_LOW_VALUES GateDecisionCode = "SKIP_LOW_VALUES"
	SKIP_LOW_SCORE  GateDecisionCode = "SKIP_LOW_SCORE"
)

// IsValid reports whether d is a known gate decision.
func (d GateDecisionCode) IsValid() bool {
	switch d {
	case CALL, SKIP_LOW_VALUES, SKIP_LOW_SCORE:
		return true
	default:
		return false
	}
}

// GateDecision is the full record behind a CALL/SKIP decision.
type GateDecision struct {
	EligibleByValidCount bool             `json:"eligible_by_valid_count"`
	EligibleByParseScore bool             `json:"eligible_by_parse_score"`
	MinParseScore        float64          `json:"min_parse_score"`
	ParseScore           float64          `json:"parse_score"`
	Decision             GateDecisionCode `json:"decision"`
}

// PreflightReason explains the chosen OCR preprocessing mode.
type PreflightReason string

const (
	IMAGE_LIKE_INPUT     PreflightReason = "IMAGE_LIKE_INPUT"
	PDF_EMPTY_TEXT_LAYER PreflightReason = "PDF_EMPTY_TEXT_LAYER"
	PRE_FLIGHT_DEFAULT   PreflightReason = "PRE_FLIGHT_DEFAULT"
)

// PreflightDecision selects the OCR preprocessing mode before the first pass.
type PreflightDecision struct {
	AdaptiveThreshold bool            `json:"adaptive_threshold"`
	Reason            PreflightReason `json:"reason"`
}
