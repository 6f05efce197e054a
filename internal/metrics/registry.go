package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the scoring core
type Registry struct {
	meter metric.Meter

	// Evaluation metrics
	EvaluationDuration metric.Float64Histogram
	EvaluationCounter  metric.Int64Counter
	EvaluationFailures metric.Int64Counter
	RuleHitCounter     metric.Int64Counter
	RuleSetVersion     metric.Int64ObservableGauge

	// Cache metrics
	CacheHitCounter  metric.Int64Counter
	CacheMissCounter metric.Int64Counter

	// Velocity store metrics
	VelocityPurgeCounter metric.Int64Counter
	VelocityBucketGauge  metric.Int64ObservableGauge

	// State for observable metrics
	mu             sync.RWMutex
	ruleSetVersion int64
	liveBuckets    int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	if err := r.initEvaluationMetrics(); err != nil {
		return nil, err
	}

	if err := r.initCacheMetrics(); err != nil {
		return nil, err
	}

	if err := r.initVelocityMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initEvaluationMetrics initializes rule-evaluation metrics
func (r *Registry) initEvaluationMetrics() error {
	var err error

	r.EvaluationDuration, err = r.meter.Float64Histogram(
		"risk.evaluation.duration",
		metric.WithDescription("Transaction evaluation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000),
	)
	if err != nil {
		return err
	}

	r.EvaluationCounter, err = r.meter.Int64Counter(
		"risk.evaluation.total",
		metric.WithDescription("Total number of transaction evaluations"),
	)
	if err != nil {
		return err
	}

	r.EvaluationFailures, err = r.meter.Int64Counter(
		"risk.evaluation.failure_total",
		metric.WithDescription("Total number of evaluations that failed without a verdict"),
	)
	if err != nil {
		return err
	}

	r.RuleHitCounter, err = r.meter.Int64Counter(
		"risk.rule.hit_total",
		metric.WithDescription("Total rule hits by rule name"),
	)
	if err != nil {
		return err
	}

	r.RuleSetVersion, err = r.meter.Int64ObservableGauge(
		"risk.rule.set_version",
		metric.WithDescription("Version of the active rule-set snapshot"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.ruleSetVersion)
			return nil
		}),
	)

	return err
}

// initCacheMetrics initializes layered-cache metrics
func (r *Registry) initCacheMetrics() error {
	var err error

	r.CacheHitCounter, err = r.meter.Int64Counter(
		"risk.cache.hit_total",
		metric.WithDescription("Total cache hits by tier"),
	)
	if err != nil {
		return err
	}

	r.CacheMissCounter, err = r.meter.Int64Counter(
		"risk.cache.miss_total",
		metric.WithDescription("Total cache misses that reached compute"),
	)

	return err
}

// initVelocityMetrics initializes velocity-store metrics
func (r *Registry) initVelocityMetrics() error {
	var err error

	r.VelocityPurgeCounter, err = r.meter.Int64Counter(
		"risk.velocity.purged_total",
		metric.WithDescription("Total expired velocity windows removed by sweeps"),
	)
	if err != nil {
		return err
	}

	r.VelocityBucketGauge, err = r.meter.Int64ObservableGauge(
		"risk.velocity.live_buckets",
		metric.WithDescription("Current number of live velocity windows"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.liveBuckets)
			return nil
		}),
	)

	return err
}

// SetRuleSetVersion records the version of the active snapshot
func (r *Registry) SetRuleSetVersion(version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ruleSetVersion = version
}

// SetLiveBuckets records the current velocity bucket count
func (r *Registry) SetLiveBuckets(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveBuckets = n
}

// RecordEvaluation records one completed or failed evaluation
func (r *Registry) RecordEvaluation(ctx context.Context, durationMS float64, disposition string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("disposition", disposition),
		attribute.Bool("success", success),
	}

	r.EvaluationDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
	r.EvaluationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if !success {
		r.EvaluationFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRuleHit records one rule hit
func (r *Registry) RecordRuleHit(ctx context.Context, ruleName string) {
	r.RuleHitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", ruleName),
	))
}

// RecordCacheLookup records a cache hit on the named tier, or a miss that
// reached compute when tier is empty
func (r *Registry) RecordCacheLookup(ctx context.Context, tier string, hit bool) {
	if hit {
		r.CacheHitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
		return
	}
	r.CacheMissCounter.Add(ctx, 1)
}

// RecordVelocityPurge records the result of one sweep
func (r *Registry) RecordVelocityPurge(ctx context.Context, purged int64) {
	r.VelocityPurgeCounter.Add(ctx, purged)
}
