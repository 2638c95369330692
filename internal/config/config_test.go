package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentRecords)
	assert.Equal(t, 10, cfg.Sources.TimeoutSecs)
	assert.Equal(t, "https://npiregistry.cms.hhs.gov/api/", cfg.Sources.Registry.BaseURL)
	assert.InDelta(t, 0.35, cfg.Scoring.WeightIdentity, 0.001)
	assert.InDelta(t, 0.20, cfg.Scoring.WeightAddress, 0.001)
	assert.InDelta(t, 0.15, cfg.Scoring.WeightEnrichment, 0.001)
	assert.InDelta(t, 0.15, cfg.Scoring.WeightCompleteness, 0.001)
	assert.InDelta(t, 0.10, cfg.Scoring.WeightFreshness, 0.001)
	assert.InDelta(t, 0.05, cfg.Scoring.WeightRisk, 0.001)
	assert.InDelta(t, 0.85, cfg.Scoring.TierPlatinumMin, 0.001)
	assert.InDelta(t, 0.60, cfg.Scoring.TierGoldMin, 0.001)
	assert.InDelta(t, 0.50, cfg.Review.ScoreFloor, 0.001)
	assert.Equal(t, 3, cfg.Review.ConflictMax)
	assert.InDelta(t, 0.25, cfg.Monitor.RedRateThreshold, 0.001)
	assert.Equal(t, 50, cfg.Monitor.ReviewBacklogMax)
}

func TestWeightSumOfDefaultsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultScoring().WeightSum(), 1e-9)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  path: /tmp/test.db
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_records: 10
sources:
  offline: true
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentRecords)
	assert.True(t, cfg.Sources.Offline)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.35, cfg.Scoring.WeightIdentity, 0.001)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("ATLAS_SERVER_PORT", "3000")
	t.Setenv("ATLAS_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := &Config{Scoring: DefaultScoring(), Sources: SourcesConfig{TimeoutSecs: 10}}
	cfg.Scoring.WeightIdentity = 0.50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sum to 1.0")
}

func TestValidate_TierOrdering(t *testing.T) {
	cfg := &Config{Scoring: DefaultScoring(), Sources: SourcesConfig{TimeoutSecs: 10}}
	cfg.Scoring.TierPlatinumMin = 0.55

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier_platinum_min")
}

func TestValidate_TimeoutRequired(t *testing.T) {
	cfg := &Config{Scoring: DefaultScoring()}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_secs")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
