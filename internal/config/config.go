// Package config loads application configuration and initializes logging.
package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Default validation policy. These are the documented tunables: dimension
// weights sum to 1.0, risk subtracts, and tier thresholds are
// exclusive-upper / inclusive-lower. Config may override any of them.
const (
	DefaultWeightIdentity     = 0.35
	DefaultWeightAddress      = 0.20
	DefaultWeightEnrichment   = 0.15
	DefaultWeightCompleteness = 0.15
	DefaultWeightFreshness    = 0.10
	DefaultWeightRisk         = 0.05

	DefaultTierPlatinumMin = 0.85
	DefaultTierGoldMin     = 0.60

	DefaultReviewScoreFloor       = 0.5
	DefaultReviewConflictMax      = 3
	DefaultFreshnessFullDays      = 90
	DefaultFreshnessHorizonDays   = 1095
	DefaultFreshnessFloor         = 0.2
	DefaultStaleRecordDays        = 730
	DefaultHighSeverityThreshold  = 0.7
	DefaultCollectorTimeoutSecs   = 10
	DefaultMaxConcurrentRecords   = 5
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Review  ReviewConfig  `yaml:"review" mapstructure:"review"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the five evidence collectors.
type SourcesConfig struct {
	TimeoutSecs int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Offline     bool            `yaml:"offline" mapstructure:"offline"`
	Registry    EndpointConfig  `yaml:"registry" mapstructure:"registry"`
	Exclusion   EndpointConfig  `yaml:"exclusion" mapstructure:"exclusion"`
	License     EndpointConfig  `yaml:"license" mapstructure:"license"`
	AddrCheck   EndpointConfig  `yaml:"addrcheck" mapstructure:"addrcheck"`
	Web         EndpointConfig  `yaml:"web" mapstructure:"web"`
}

// EndpointConfig holds connection settings for one evidence source.
type EndpointConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	Key     string  `yaml:"key" mapstructure:"key"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// ScoringConfig holds the dimension weights and tier thresholds.
type ScoringConfig struct {
	WeightIdentity     float64 `yaml:"weight_identity" mapstructure:"weight_identity"`
	WeightAddress      float64 `yaml:"weight_address" mapstructure:"weight_address"`
	WeightEnrichment   float64 `yaml:"weight_enrichment" mapstructure:"weight_enrichment"`
	WeightCompleteness float64 `yaml:"weight_completeness" mapstructure:"weight_completeness"`
	WeightFreshness    float64 `yaml:"weight_freshness" mapstructure:"weight_freshness"`
	WeightRisk         float64 `yaml:"weight_risk" mapstructure:"weight_risk"`

	TierPlatinumMin float64 `yaml:"tier_platinum_min" mapstructure:"tier_platinum_min"`
	TierGoldMin     float64 `yaml:"tier_gold_min" mapstructure:"tier_gold_min"`

	FreshnessFullDays    int     `yaml:"freshness_full_days" mapstructure:"freshness_full_days"`
	FreshnessHorizonDays int     `yaml:"freshness_horizon_days" mapstructure:"freshness_horizon_days"`
	FreshnessFloor       float64 `yaml:"freshness_floor" mapstructure:"freshness_floor"`
	StaleRecordDays      int     `yaml:"stale_record_days" mapstructure:"stale_record_days"`
}

// WeightSum returns the total of all six dimension weights.
func (s ScoringConfig) WeightSum() float64 {
	return s.WeightIdentity + s.WeightAddress + s.WeightEnrichment +
		s.WeightCompleteness + s.WeightFreshness + s.WeightRisk
}

// DefaultScoring returns the documented default scoring policy.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		WeightIdentity:       DefaultWeightIdentity,
		WeightAddress:        DefaultWeightAddress,
		WeightEnrichment:     DefaultWeightEnrichment,
		WeightCompleteness:   DefaultWeightCompleteness,
		WeightFreshness:      DefaultWeightFreshness,
		WeightRisk:           DefaultWeightRisk,
		TierPlatinumMin:      DefaultTierPlatinumMin,
		TierGoldMin:          DefaultTierGoldMin,
		FreshnessFullDays:    DefaultFreshnessFullDays,
		FreshnessHorizonDays: DefaultFreshnessHorizonDays,
		FreshnessFloor:       DefaultFreshnessFloor,
		StaleRecordDays:      DefaultStaleRecordDays,
	}
}

// DefaultReview returns the documented default review routing policy.
func DefaultReview() ReviewConfig {
	return ReviewConfig{
		ScoreFloor:  DefaultReviewScoreFloor,
		ConflictMax: DefaultReviewConflictMax,
	}
}

// ReviewConfig holds the human review routing thresholds.
type ReviewConfig struct {
	ScoreFloor  float64 `yaml:"score_floor" mapstructure:"score_floor"`
	ConflictMax int     `yaml:"conflict_max" mapstructure:"conflict_max"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRecords int `yaml:"max_concurrent_records" mapstructure:"max_concurrent_records"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitorConfig holds alerting thresholds and the optional webhook target.
type MonitorConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	RedRateThreshold  float64 `yaml:"red_rate_threshold" mapstructure:"red_rate_threshold"`
	ReviewBacklogMax  int     `yaml:"review_backlog_max" mapstructure:"review_backlog_max"`
	MinSampleForRates int     `yaml:"min_sample_for_rates" mapstructure:"min_sample_for_rates"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.path", "atlas.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_records", DefaultMaxConcurrentRecords)
	v.SetDefault("sources.timeout_secs", DefaultCollectorTimeoutSecs)
	v.SetDefault("sources.registry.base_url", "https://npiregistry.cms.hhs.gov/api/")
	v.SetDefault("sources.registry.rps", 5)
	v.SetDefault("sources.exclusion.rps", 5)
	v.SetDefault("sources.license.rps", 5)
	v.SetDefault("sources.addrcheck.rps", 5)
	v.SetDefault("sources.web.rps", 2)
	v.SetDefault("scoring.weight_identity", DefaultWeightIdentity)
	v.SetDefault("scoring.weight_address", DefaultWeightAddress)
	v.SetDefault("scoring.weight_enrichment", DefaultWeightEnrichment)
	v.SetDefault("scoring.weight_completeness", DefaultWeightCompleteness)
	v.SetDefault("scoring.weight_freshness", DefaultWeightFreshness)
	v.SetDefault("scoring.weight_risk", DefaultWeightRisk)
	v.SetDefault("scoring.tier_platinum_min", DefaultTierPlatinumMin)
	v.SetDefault("scoring.tier_gold_min", DefaultTierGoldMin)
	v.SetDefault("scoring.freshness_full_days", DefaultFreshnessFullDays)
	v.SetDefault("scoring.freshness_horizon_days", DefaultFreshnessHorizonDays)
	v.SetDefault("scoring.freshness_floor", DefaultFreshnessFloor)
	v.SetDefault("scoring.stale_record_days", DefaultStaleRecordDays)
	v.SetDefault("review.score_floor", DefaultReviewScoreFloor)
	v.SetDefault("review.conflict_max", DefaultReviewConflictMax)
	v.SetDefault("monitor.red_rate_threshold", 0.25)
	v.SetDefault("monitor.review_backlog_max", 50)
	v.SetDefault("monitor.min_sample_for_rates", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that break scoring invariants.
func (c *Config) Validate() error {
	if diff := math.Abs(c.Scoring.WeightSum() - 1.0); diff > 1e-9 {
		return eris.Errorf("config: scoring weights must sum to 1.0, got %.4f", c.Scoring.WeightSum())
	}
	if c.Scoring.TierPlatinumMin <= c.Scoring.TierGoldMin {
		return eris.New("config: tier_platinum_min must exceed tier_gold_min")
	}
	if c.Sources.TimeoutSecs <= 0 {
		return eris.New("config: sources.timeout_secs must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
