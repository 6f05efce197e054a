package scoring

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-risk-core/internal/domain/risk"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/config"
)

// Aggregator folds rule hits into one ScoreResult using configured risk
// bands and dispositions.
type Aggregator struct {
	baseScore  decimal.Decimal
	lowCeil    decimal.Decimal
	mediumCeil decimal.Decimal
	highCeil   decimal.Decimal

	dispositions map[risk.Level]risk.Disposition
}

// NewAggregator validates the scoring configuration up front so a bad band
// ordering or disposition string fails at startup rather than mid-evaluation.
func NewAggregator(cfg config.ScoringConfig) (*Aggregator, error) {
	if cfg.RiskBands.Low >= cfg.RiskBands.Medium || cfg.RiskBands.Medium >= cfg.RiskBands.High {
		return nil, fmt.Errorf("risk bands must be strictly increasing: %v, %v, %v",
			cfg.RiskBands.Low, cfg.RiskBands.Medium, cfg.RiskBands.High)
	}

	dispositions := make(map[risk.Level]risk.Disposition, 4)
	for _, level := range []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh, risk.LevelVeryHigh} {
		raw, ok := cfg.Dispositions[string(level)]
		if !ok {
			return nil, fmt.Errorf("no disposition configured for level %s", level)
		}
		d := risk.Disposition(raw)
		switch d {
		case risk.DispositionAccept, risk.DispositionReject, risk.DispositionReview:
		default:
			return nil, fmt.Errorf("invalid disposition %q for level %s", raw, level)
		}
		dispositions[level] = d
	}

	return &Aggregator{
		baseScore:    decimal.NewFromFloat(cfg.BaseScore),
		lowCeil:      decimal.NewFromFloat(cfg.RiskBands.Low),
		mediumCeil:   decimal.NewFromFloat(cfg.RiskBands.Medium),
		highCeil:     decimal.NewFromFloat(cfg.RiskBands.High),
		dispositions: dispositions,
	}, nil
}

// Aggregate sums the weighted hit deltas onto the base score, clamps the
// total into [0.01, 99.99], and derives the level and disposition. A
// non-binding transaction always receives the test disposition; its score
// and level are computed normally so shadow traffic remains comparable.
func (a *Aggregator) Aggregate(hits []risk.Hit, flags []string, nonBinding bool, elapsed time.Duration) risk.ScoreResult {
	ruleScore := decimal.Zero
	for _, h := range hits {
		ruleScore = ruleScore.Add(h.Score)
	}

	total := risk.Clamp(a.baseScore.Add(ruleScore))
	level := a.level(total)

	disposition := a.dispositions[level]
	if nonBinding {
		disposition = risk.DispositionTest
	}

	return risk.ScoreResult{
		TotalScore:  total,
		Level:       level,
		Disposition: disposition,
		Hits:        hits,
		Flags:       flags,
		Breakdown: risk.Breakdown{
			BaseScore:  a.baseScore,
			RuleScore:  ruleScore,
			TotalScore: total,
			HitCount:   len(hits),
		},
		Elapsed: elapsed,
	}
}

// level maps a clamped score onto a band. Band values are upper boundaries:
// a score below Low is low, below Medium is medium, below High is high, and
// anything at or above High is very_high.
func (a *Aggregator) level(score decimal.Decimal) risk.Level {
	switch {
	case score.LessThan(a.lowCeil):
		return risk.LevelLow
	case score.LessThan(a.mediumCeil):
		return risk.LevelMedium
	case score.LessThan(a.highCeil):
		return risk.LevelHigh
	default:
		return risk.LevelVeryHigh
	}
}
