package scoring

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/davidleathers/transaction-risk-core/internal/domain/errors"
	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
	"github.com/davidleathers/transaction-risk-core/internal/domain/risk"
	"github.com/davidleathers/transaction-risk-core/internal/domain/rule"
	"github.com/davidleathers/transaction-risk-core/internal/domain/transaction"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/cache"
	"github.com/davidleathers/transaction-risk-core/internal/metrics"
	"github.com/davidleathers/transaction-risk-core/internal/service/velocity"
)

// Engine evaluates transactions against the active rule snapshot. It is safe
// for concurrent use: the snapshot pointer is swapped atomically on reload
// and each evaluation works against the snapshot it loaded at entry.
type Engine struct {
	logger     *zap.Logger
	store      *velocity.Store
	features   FeatureReader
	cache      *cache.Layered
	aggregator *Aggregator
	metrics    *metrics.Registry
	timeout    time.Duration

	snapshot atomic.Pointer[rule.Snapshot]
}

// NewEngine wires the evaluation pipeline. cache may be nil when feature
// reads go straight to the store; metrics may be nil in tests.
func NewEngine(
	logger *zap.Logger,
	store *velocity.Store,
	features FeatureReader,
	layered *cache.Layered,
	aggregator *Aggregator,
	registry *metrics.Registry,
	timeout time.Duration,
) *Engine {
	return &Engine{
		logger:     logger,
		store:      store,
		features:   features,
		cache:      layered,
		aggregator: aggregator,
		metrics:    registry,
		timeout:    timeout,
	}
}

// ReloadRules parses a rules document and atomically swaps it in as the
// active snapshot. On any parse or validation error the previous snapshot
// stays active and keeps serving evaluations.
func (e *Engine) ReloadRules(doc []byte) error {
	snap, err := rule.Parse(doc)
	if err != nil {
		e.logger.Error("rule reload rejected, previous snapshot retained",
			zap.Error(err))
		return err
	}

	e.snapshot.Store(snap)
	if e.metrics != nil {
		e.metrics.SetRuleSetVersion(int64(snap.Version))
	}
	e.logger.Info("rule snapshot activated",
		zap.Int("version", snap.Version),
		zap.Int("rules", snap.Len()))
	return nil
}

// ActiveSnapshot returns the snapshot evaluations currently run against,
// or nil before the first successful load.
func (e *Engine) ActiveSnapshot() *rule.Snapshot {
	return e.snapshot.Load()
}

// InvalidateFeature drops the cached value for one velocity feature so the
// next read recomputes from the store.
func (e *Engine) InvalidateFeature(ctx context.Context, key feature.Key) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx, key.String())
}

// Score evaluates one transaction against the active snapshot and returns
// the aggregate verdict. The transaction's own event is recorded into the
// velocity store first, so every velocity condition observes a count that
// includes the transaction being scored.
func (e *Engine) Score(ctx context.Context, txn *transaction.Transaction) (risk.ScoreResult, error) {
	start := time.Now()

	if err := validateTransaction(txn); err != nil {
		return risk.ScoreResult{}, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	snap := e.snapshot.Load()
	if snap == nil || snap.Len() == 0 {
		// No rules loaded: the verdict is the base score alone.
		result := e.aggregator.Aggregate(nil, nil, txn.NonBinding, time.Since(start))
		e.recordEvaluation(ctx, result, true)
		return result, nil
	}

	e.recordVelocity(ctx, snap, txn)

	var (
		hits       []risk.Hit
		flags      []string
		evaluated  int
		readFailed int
		env        = &evalEnv{txn: txn, features: e.features}
	)

	for _, r := range snap.Rules() {
		if err := ctx.Err(); err != nil {
			e.recordEvaluation(ctx, risk.ScoreResult{}, false)
			return risk.ScoreResult{}, domainErrors.NewTimeoutError("rule evaluation deadline exceeded").WithCause(err)
		}

		if r.Schedule != nil && !r.Schedule.Active(txn.EventTime) {
			continue
		}
		evaluated++

		env.bindings = map[string]string{}
		matched, err := evalCondition(ctx, env, r.Condition)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				e.recordEvaluation(ctx, risk.ScoreResult{}, false)
				return risk.ScoreResult{}, domainErrors.NewTimeoutError("rule evaluation deadline exceeded").WithCause(err)
			}
			// A rule that cannot read its features does not match; the rest
			// of the set still evaluates.
			readFailed++
			e.logger.Warn("rule evaluation degraded, treating as non-match",
				zap.String("rule", r.Name),
				zap.Error(err))
			continue
		}
		if !matched {
			continue
		}

		hit, ruleFlags := applyActions(r, env.bindings)
		if hit != nil {
			hits = append(hits, *hit)
		}
		flags = appendUnique(flags, ruleFlags...)
		if e.metrics != nil {
			e.metrics.RecordRuleHit(ctx, r.Name)
		}
	}

	// A feature read that outlives the deadline can let the loop finish
	// without tripping the per-iteration check; a deadline that expired at
	// any point during evaluation never yields a result.
	if err := ctx.Err(); err != nil {
		e.recordEvaluation(ctx, risk.ScoreResult{}, false)
		return risk.ScoreResult{}, domainErrors.NewTimeoutError("rule evaluation deadline exceeded").WithCause(err)
	}

	if evaluated > 0 && readFailed == evaluated {
		e.recordEvaluation(ctx, risk.ScoreResult{}, false)
		return risk.ScoreResult{}, domainErrors.NewFeatureUnavailableError(
			"velocity features unavailable for every candidate rule")
	}

	result := e.aggregator.Aggregate(hits, flags, txn.NonBinding, time.Since(start))
	e.recordEvaluation(ctx, result, true)

	e.logger.Debug("transaction scored",
		zap.String("external_id", txn.ExternalID),
		zap.String("total_score", result.TotalScore.String()),
		zap.String("disposition", string(result.Disposition)),
		zap.Int("hits", len(result.Hits)),
		zap.Duration("elapsed", result.Elapsed))

	return result, nil
}

// recordVelocity writes the transaction into every velocity counter the
// snapshot's rules can read, deduplicated by key. The cache entries for the
// touched keys are invalidated so subsequent reads see the new counts.
func (e *Engine) recordVelocity(ctx context.Context, snap *rule.Snapshot, txn *transaction.Transaction) {
	if e.store == nil {
		return
	}

	seen := map[string]struct{}{}
	for _, r := range snap.Rules() {
		for _, leaf := range velocityLeaves(r.Condition, nil) {
			identityVal, ok := txn.Field(leaf.Field)
			if !ok {
				continue
			}
			key, err := feature.NewKey(leaf.Dimension, stringify(identityVal), leaf.Window)
			if err != nil {
				continue
			}
			ks := key.String()
			if _, dup := seen[ks]; dup {
				continue
			}
			seen[ks] = struct{}{}

			e.store.Record(key, txn.EventTime, txn.Amount.Amount())
			if e.cache != nil {
				if err := e.cache.Invalidate(ctx, ks); err != nil {
					e.logger.Warn("feature cache invalidation failed",
						zap.String("key", ks),
						zap.Error(err))
				}
			}
		}
	}
}

func (e *Engine) recordEvaluation(ctx context.Context, result risk.ScoreResult, success bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordEvaluation(ctx,
		float64(result.Elapsed)/float64(time.Millisecond),
		string(result.Disposition),
		success)
}

// velocityLeaves collects the velocity conditions reachable from cond.
func velocityLeaves(cond rule.Condition, out []*rule.Velocity) []*rule.Velocity {
	switch c := cond.(type) {
	case *rule.AllOf:
		for _, child := range c.Children {
			out = velocityLeaves(child, out)
		}
	case *rule.AnyOf:
		for _, child := range c.Children {
			out = velocityLeaves(child, out)
		}
	case *rule.Velocity:
		out = append(out, c)
	}
	return out
}

// applyActions turns a matched rule into at most one hit plus its flags.
// Score deltas are multiplied by the rule weight; multiple score actions on
// one rule accumulate into a single hit.
func applyActions(r *rule.Rule, bindings map[string]string) (*risk.Hit, []string) {
	var (
		hit   *risk.Hit
		flags []string
	)
	for _, a := range r.Actions {
		switch a.Type {
		case rule.ActionScore:
			delta := a.Score.Mul(r.Weight)
			if hit == nil {
				hit = &risk.Hit{
					RuleName:    r.Name,
					RuleVersion: r.Version,
					Score:       delta,
					Reason:      expandReason(a.Reason, bindings),
				}
			} else {
				hit.Score = hit.Score.Add(delta)
			}
		case rule.ActionFlag:
			flags = append(flags, a.Flag)
		}
	}
	if hit != nil && len(flags) > 0 {
		hit.Flags = append([]string(nil), flags...)
	}
	if hit == nil && len(flags) > 0 {
		// A flag-only rule still surfaces as a hit so the verdict explains
		// every flag it carries.
		hit = &risk.Hit{
			RuleName:    r.Name,
			RuleVersion: r.Version,
			Flags:       append([]string(nil), flags...),
		}
	}
	return hit, flags
}

func appendUnique(dst []string, more ...string) []string {
	for _, f := range more {
		found := false
		for _, existing := range dst {
			if existing == f {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, f)
		}
	}
	return dst
}

func validateTransaction(txn *transaction.Transaction) error {
	if txn == nil {
		return domainErrors.NewValidationError("MISSING_TRANSACTION", "transaction is required")
	}
	if !txn.EventType.IsValid() {
		return domainErrors.NewValidationError("INVALID_EVENT_TYPE",
			"unknown event type "+string(txn.EventType))
	}
	if txn.EventTime.IsZero() {
		return domainErrors.NewValidationError("MISSING_EVENT_TIME", "event time is required")
	}
	return nil
}
