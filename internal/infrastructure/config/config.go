package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Redis    RedisConfig    `koanf:"redis"`
	Cache    CacheConfig    `koanf:"cache"`
	Velocity VelocityConfig `koanf:"velocity"`
	Scoring  ScoringConfig  `koanf:"scoring"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type CacheConfig struct {
	LocalCapacity int           `koanf:"local_capacity"`
	FeatureTTL    time.Duration `koanf:"feature_ttl"`
}

type VelocityConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ScoringConfig carries the business-policy knobs of the score aggregator.
// Band boundaries and disposition mapping are policy, not algorithmic
// constants, so they live here rather than in code.
type ScoringConfig struct {
	BaseScore    float64           `koanf:"base_score"`
	EvalTimeout  time.Duration     `koanf:"eval_timeout"`
	RiskBands    RiskBandConfig    `koanf:"risk_bands"`
	Dispositions map[string]string `koanf:"dispositions"`
}

// RiskBandConfig defines the upper boundaries of the low/medium/high bands
// over the clamped score; everything at or above High is very_high.
type RiskBandConfig struct {
	Low    float64 `koanf:"low"`
	Medium float64 `koanf:"medium"`
	High   float64 `koanf:"high"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      true,
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			LocalCapacity: 4096,
			FeatureTTL:    30 * time.Second,
		},
		Velocity: VelocityConfig{
			SweepInterval: 1 * time.Minute,
		},
		Scoring: ScoringConfig{
			BaseScore:   0,
			EvalTimeout: 2 * time.Second,
			RiskBands: RiskBandConfig{
				Low:    10.0,
				Medium: 30.0,
				High:   70.0,
			},
			Dispositions: map[string]string{
				"low":       "accept",
				"medium":    "review",
				"high":      "review",
				"very_high": "reject",
			},
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if exists
	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		// Config file is optional
	}

	// Override with environment variables
	if err := k.Load(env.Provider("RISK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "RISK_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
