package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/transaction-risk-core/internal/domain/risk"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/config"
)

func defaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		BaseScore:   0,
		EvalTimeout: 2 * time.Second,
		RiskBands:   config.RiskBandConfig{Low: 10, Medium: 30, High: 70},
		Dispositions: map[string]string{
			"low":       "accept",
			"medium":    "review",
			"high":      "review",
			"very_high": "reject",
		},
	}
}

func hit(score string) risk.Hit {
	return risk.Hit{RuleName: "r", RuleVersion: 1, Score: decimal.RequireFromString(score)}
}

func TestNewAggregator_RejectsBadConfig(t *testing.T) {
	cfg := defaultScoringConfig()
	cfg.RiskBands.Medium = 5
	_, err := NewAggregator(cfg)
	assert.Error(t, err, "bands must be strictly increasing")

	cfg = defaultScoringConfig()
	cfg.Dispositions["high"] = "escalate"
	_, err = NewAggregator(cfg)
	assert.Error(t, err, "unknown disposition string")

	cfg = defaultScoringConfig()
	delete(cfg.Dispositions, "very_high")
	_, err = NewAggregator(cfg)
	assert.Error(t, err, "every level needs a disposition")

	cfg = defaultScoringConfig()
	cfg.Dispositions["low"] = "test"
	_, err = NewAggregator(cfg)
	assert.Error(t, err, "test is reserved for non-binding traffic")
}

func TestAggregate_SumsDeltas(t *testing.T) {
	agg, err := NewAggregator(defaultScoringConfig())
	require.NoError(t, err)

	res := agg.Aggregate([]risk.Hit{hit("12.5"), hit("7.25")}, nil, false, time.Millisecond)

	assert.True(t, res.TotalScore.Equal(decimal.RequireFromString("19.75")), "total = %s", res.TotalScore)
	assert.True(t, res.Breakdown.RuleScore.Equal(decimal.RequireFromString("19.75")))
	assert.True(t, res.Breakdown.BaseScore.IsZero())
	assert.Equal(t, 2, res.Breakdown.HitCount)
	assert.Equal(t, time.Millisecond, res.Elapsed)
}

func TestAggregate_ClampBounds(t *testing.T) {
	agg, err := NewAggregator(defaultScoringConfig())
	require.NoError(t, err)

	// No hits clamps up to the exact floor.
	res := agg.Aggregate(nil, nil, false, 0)
	assert.True(t, res.TotalScore.Equal(risk.MinScore), "total = %s", res.TotalScore)

	// A runaway sum clamps down to the exact ceiling.
	res = agg.Aggregate([]risk.Hit{hit("80"), hit("75")}, nil, false, 0)
	assert.True(t, res.TotalScore.Equal(risk.MaxScore), "total = %s", res.TotalScore)

	// Negative deltas clamp up, never below the floor.
	res = agg.Aggregate([]risk.Hit{hit("-50")}, nil, false, 0)
	assert.True(t, res.TotalScore.Equal(risk.MinScore))
}

func TestAggregate_RiskBands(t *testing.T) {
	agg, err := NewAggregator(defaultScoringConfig())
	require.NoError(t, err)

	tests := []struct {
		score       string
		level       risk.Level
		disposition risk.Disposition
	}{
		{"5", risk.LevelLow, risk.DispositionAccept},
		{"9.99", risk.LevelLow, risk.DispositionAccept},
		{"10", risk.LevelMedium, risk.DispositionReview},
		{"29.99", risk.LevelMedium, risk.DispositionReview},
		{"30", risk.LevelHigh, risk.DispositionReview},
		{"69.99", risk.LevelHigh, risk.DispositionReview},
		{"70", risk.LevelVeryHigh, risk.DispositionReject},
		{"99", risk.LevelVeryHigh, risk.DispositionReject},
	}
	for _, tt := range tests {
		t.Run(tt.score, func(t *testing.T) {
			res := agg.Aggregate([]risk.Hit{hit(tt.score)}, nil, false, 0)
			assert.Equal(t, tt.level, res.Level)
			assert.Equal(t, tt.disposition, res.Disposition)
		})
	}
}

func TestAggregate_BaseScoreShiftsTotal(t *testing.T) {
	cfg := defaultScoringConfig()
	cfg.BaseScore = 1
	agg, err := NewAggregator(cfg)
	require.NoError(t, err)

	res := agg.Aggregate([]risk.Hit{hit("15")}, nil, false, 0)
	assert.True(t, res.TotalScore.Equal(decimal.NewFromInt(16)))
	assert.True(t, res.Breakdown.BaseScore.Equal(decimal.NewFromInt(1)))
}

func TestAggregate_NonBindingGetsTestDisposition(t *testing.T) {
	agg, err := NewAggregator(defaultScoringConfig())
	require.NoError(t, err)

	res := agg.Aggregate([]risk.Hit{hit("85")}, []string{"velocity_ip"}, true, 0)

	// Score and level are computed normally; only the disposition changes.
	assert.Equal(t, risk.LevelVeryHigh, res.Level)
	assert.Equal(t, risk.DispositionTest, res.Disposition)
	assert.True(t, res.TotalScore.Equal(decimal.NewFromInt(85)))
	assert.Equal(t, []string{"velocity_ip"}, res.Flags)
}

func TestClamp(t *testing.T) {
	assert.True(t, risk.Clamp(decimal.NewFromInt(-5)).Equal(risk.MinScore))
	assert.True(t, risk.Clamp(decimal.NewFromInt(200)).Equal(risk.MaxScore))
	assert.True(t, risk.Clamp(decimal.NewFromInt(50)).Equal(decimal.NewFromInt(50)))
	assert.True(t, risk.Clamp(risk.MinScore).Equal(risk.MinScore))
	assert.True(t, risk.Clamp(risk.MaxScore).Equal(risk.MaxScore))
}
