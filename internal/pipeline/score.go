package pipeline

import (
	"time"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
)

// riskSaturation is the total indicator severity at which the risk dimension
// reaches 1.0. Two full-severity indicators saturate it.
const riskSaturation = 2.0

// neutralFreshness is the score assigned when last_updated is absent or
// unparseable: unknown age is neither fresh nor stale.
const neutralFreshness = 0.5

// Weight of the registry's own match confidence versus exact-field agreement
// in the identity dimension.
const (
	identityMatchWeight = 0.6
	identityNameWeight  = 0.2
	identityNPIWeight   = 0.2
)

// Address dimension levels by validation outcome.
const (
	addressMedicalScore     = 1.0
	addressDeliverableScore = 0.6
	addressUndeliverable    = 0.2
)

// ScoreEvidence computes the six-dimension breakdown from disjoint evidence
// subsets. Failed sources contribute zero to their dimension; only freshness
// has a non-zero default because unknown age is not evidence of anything.
func ScoreEvidence(p model.NormalizedProvider, ev model.EvidenceSet,
	indicators model.FraudIndicatorSet, cfg config.ScoringConfig, now time.Time) model.ScoreBreakdown {

	return model.ScoreBreakdown{
		Identity:     scoreIdentity(p, ev.Identity),
		Address:      scoreAddress(ev.Address),
		Completeness: scoreCompleteness(p),
		Freshness:    scoreFreshness(p.LastUpdated, cfg, now),
		Enrichment:   scoreEnrichment(ev.Web),
		Risk:         scoreRisk(indicators),
	}
}

// scoreIdentity blends the registry's match confidence with exact agreement
// on name and NPI. Zero registry matches is a hard zero regardless of what
// the registry claims its confidence to be.
func scoreIdentity(p model.NormalizedProvider, res model.EvidenceResult) float64 {
	if !res.OK() || res.Identity == nil {
		return 0
	}
	m := res.Identity
	if m.ResultCount == 0 {
		return 0
	}

	score := identityMatchWeight * clamp01(m.MatchConfidence)
	if fieldsAgree(model.FieldFullName, p.FullName, m.FullName) {
		score += identityNameWeight
	}
	if fieldsAgree(model.FieldNPI, p.NPI, m.NPI) {
		score += identityNPIWeight
	}
	return clamp01(score)
}

// fieldsAgree treats a missing side as agreement: absence is not a mismatch.
func fieldsAgree(field, a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return normalizeValue(field, a) == normalizeValue(field, b)
}

func scoreAddress(res model.EvidenceResult) float64 {
	if !res.OK() || res.Address == nil {
		return 0
	}
	chk := res.Address
	switch {
	case chk.Deliverable && chk.MedicalFacility:
		return addressMedicalScore
	case chk.Deliverable:
		return addressDeliverableScore
	default:
		return addressUndeliverable
	}
}

func scoreCompleteness(p model.NormalizedProvider) float64 {
	return float64(p.NonEmptyFields()) / float64(len(model.ProviderFields))
}

// scoreFreshness gives full credit inside the full-credit window, then
// decays linearly to the floor at the horizon.
func scoreFreshness(lastUpdated string, cfg config.ScoringConfig, now time.Time) float64 {
	fullDays := cfg.FreshnessFullDays
	if fullDays <= 0 {
		fullDays = config.DefaultFreshnessFullDays
	}
	horizonDays := cfg.FreshnessHorizonDays
	if horizonDays <= fullDays {
		horizonDays = config.DefaultFreshnessHorizonDays
	}
	floor := cfg.FreshnessFloor
	if floor <= 0 {
		floor = config.DefaultFreshnessFloor
	}

	updated, ok := parseLastUpdated(lastUpdated)
	if !ok {
		return neutralFreshness
	}

	ageDays := now.Sub(updated).Hours() / 24
	switch {
	case ageDays <= float64(fullDays):
		return 1.0
	case ageDays >= float64(horizonDays):
		return floor
	default:
		span := float64(horizonDays - fullDays)
		progress := (ageDays - float64(fullDays)) / span
		return 1.0 - progress*(1.0-floor)
	}
}

func scoreEnrichment(res model.EvidenceResult) float64 {
	if !res.OK() || res.Web == nil {
		return 0
	}
	return clamp01(res.Web.FootprintScore)
}

func scoreRisk(indicators model.FraudIndicatorSet) float64 {
	return clamp01(indicators.TotalSeverity() / riskSaturation)
}

// WeightedScore folds the breakdown into a single confidence score. Risk
// subtracts; everything else adds. The result is clamped to [0,1].
func WeightedScore(b model.ScoreBreakdown, cfg config.ScoringConfig) float64 {
	sum := cfg.WeightIdentity*b.Identity +
		cfg.WeightAddress*b.Address +
		cfg.WeightCompleteness*b.Completeness +
		cfg.WeightFreshness*b.Freshness +
		cfg.WeightEnrichment*b.Enrichment -
		cfg.WeightRisk*b.Risk
	return clamp01(sum)
}

// classifyInput is everything the tier and path rule tables may consult.
type classifyInput struct {
	score        float64
	tier         model.Tier
	indicators   model.FraudIndicatorSet
	exclusionHit bool
	platinumMin  float64
	goldMin      float64
	highSevFloor float64
}

// tierRules is evaluated top to bottom; the first matching rule decides.
var tierRules = []struct {
	tier  model.Tier
	match func(in classifyInput) bool
}{
	{model.TierPlatinum, func(in classifyInput) bool {
		return in.score >= in.platinumMin && in.indicators.CountAtOrAbove(in.highSevFloor) == 0
	}},
	{model.TierGold, func(in classifyInput) bool {
		return in.score >= in.goldMin
	}},
	{model.TierQuestionable, func(in classifyInput) bool { return true }},
}

// pathRules is evaluated top to bottom; the exclusion override sits first so
// no score can outrank it.
var pathRules = []struct {
	path  model.Path
	match func(in classifyInput) bool
}{
	{model.PathRed, func(in classifyInput) bool { return in.exclusionHit }},
	{model.PathGreen, func(in classifyInput) bool {
		return in.tier == model.TierPlatinum && len(in.indicators) == 0
	}},
	{model.PathYellow, func(in classifyInput) bool {
		return in.tier == model.TierGold || in.tier == model.TierPlatinum
	}},
	{model.PathRed, func(in classifyInput) bool { return true }},
}

// Classify maps a confidence score plus fraud context onto a tier and path
// using the ordered rule tables.
func Classify(score float64, indicators model.FraudIndicatorSet, exclusionHit bool,
	cfg config.ScoringConfig) (model.Tier, model.Path) {

	in := classifyInput{
		score:        score,
		indicators:   indicators,
		exclusionHit: exclusionHit,
		platinumMin:  defaultIfZero(cfg.TierPlatinumMin, config.DefaultTierPlatinumMin),
		goldMin:      defaultIfZero(cfg.TierGoldMin, config.DefaultTierGoldMin),
		highSevFloor: config.DefaultHighSeverityThreshold,
	}

	for _, r := range tierRules {
		if r.match(in) {
			in.tier = r.tier
			break
		}
	}
	for _, r := range pathRules {
		if r.match(in) {
			return in.tier, r.path
		}
	}
	return in.tier, model.PathRed
}

func defaultIfZero(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
