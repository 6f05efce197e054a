package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Score bounds. Every total score is clamped into [MinScore, MaxScore].
var (
	MinScore = decimal.RequireFromString("0.01")
	MaxScore = decimal.RequireFromString("99.99")
)

// Level classifies a clamped score into a business band.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// Disposition is the recommended action for a transaction.
type Disposition string

const (
	DispositionAccept Disposition = "accept"
	DispositionReject Disposition = "reject"
	DispositionReview Disposition = "review"
	// DispositionTest marks a fully evaluated but non-binding verdict, used
	// for rule tuning.
	DispositionTest Disposition = "test"
)

// Hit records a single triggered rule. Constructed fresh per evaluation and
// never persisted by this core.
type Hit struct {
	RuleName    string          `json:"rule_name"`
	RuleVersion int             `json:"rule_version"`
	Score       decimal.Decimal `json:"score"`
	Reason      string          `json:"reason"`
	Flags       []string        `json:"flags,omitempty"`
}

// Breakdown explains how the total score was assembled.
type Breakdown struct {
	BaseScore  decimal.Decimal `json:"base_score"`
	RuleScore  decimal.Decimal `json:"rule_score"`
	TotalScore decimal.Decimal `json:"total_score"`
	HitCount   int             `json:"hit_count"`
}

// ScoreResult is the final verdict for one transaction: total score, risk
// band, disposition, and the ordered rule hits that explain it.
type ScoreResult struct {
	TotalScore  decimal.Decimal `json:"total_score"`
	Level       Level           `json:"risk_level"`
	Disposition Disposition     `json:"disposition"`
	Hits        []Hit           `json:"rule_hits"`
	Flags       []string        `json:"flags,omitempty"`
	Breakdown   Breakdown       `json:"breakdown"`
	Elapsed     time.Duration   `json:"evaluation_duration"`
}

// Clamp bounds a raw score sum into the valid score range.
func Clamp(score decimal.Decimal) decimal.Decimal {
	if score.LessThan(MinScore) {
		return MinScore
	}
	if score.GreaterThan(MaxScore) {
		return MaxScore
	}
	return score
}
