package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidleathers/transaction-risk-core/internal/api/rest"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/cache"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/config"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/telemetry"
	"github.com/davidleathers/transaction-risk-core/internal/metrics"
	"github.com/davidleathers/transaction-risk-core/internal/service/scoring"
	"github.com/davidleathers/transaction-risk-core/internal/service/velocity"
)

func main() {
	rulesPath := flag.String("rules", "configs/rules.yaml", "Path to the rules document")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	registry, err := metrics.NewRegistry("transaction-risk-core")
	if err != nil {
		logger.Fatal("failed to initialize metrics", zap.Error(err))
	}

	store := velocity.NewStore(logger)

	tiers := []cache.Tier{cache.NewLocalTier(cfg.Cache.LocalCapacity)}
	if cfg.Redis.Enabled {
		redisTier, err := cache.NewRedisTier(&cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		tiers = append(tiers, redisTier)
	}
	layered := cache.NewLayered(logger, tiers...).WithMetrics(registry)
	defer layered.Close() //nolint:errcheck

	features := scoring.NewCachedFeatureReader(store, layered, cfg.Cache.FeatureTTL)

	aggregator, err := scoring.NewAggregator(cfg.Scoring)
	if err != nil {
		logger.Fatal("invalid scoring configuration", zap.Error(err))
	}

	engine := scoring.NewEngine(logger, store, features, layered, aggregator, registry, cfg.Scoring.EvalTimeout)

	if doc, err := os.ReadFile(*rulesPath); err == nil {
		if err := engine.ReloadRules(doc); err != nil {
			logger.Fatal("failed to load rules", zap.String("path", *rulesPath), zap.Error(err))
		}
	} else {
		// The engine starts without rules; everything scores at the base
		// score until a snapshot arrives via PUT /v1/rules.
		logger.Warn("no rules document loaded", zap.String("path", *rulesPath), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeperStop := make(chan struct{})
	go store.Sweeper(cfg.Velocity.SweepInterval, sweeperStop, func(purged, live int) {
		registry.RecordVelocityPurge(ctx, int64(purged))
		registry.SetLiveBuckets(int64(live))
	})
	defer close(sweeperStop)

	server := rest.NewServer(cfg, logger, engine)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
