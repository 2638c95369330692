package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/source"
)

// cannedCollector returns a fixed result or error for every lookup.
type cannedCollector struct {
	src model.Source
	res model.EvidenceResult
	err error
}

func (c *cannedCollector) Source() model.Source { return c.src }

func (c *cannedCollector) Lookup(_ context.Context, _ model.NormalizedProvider) (model.EvidenceResult, error) {
	return c.res, c.err
}

// cannedSet converts a prebuilt evidence set into collectors so Validate
// runs the real fan-out against deterministic responses.
func cannedSet(ev model.EvidenceSet) source.Set {
	strip := func(r model.EvidenceResult) model.EvidenceResult {
		r.Status = ""
		return r
	}
	return source.Set{
		Identity:  &cannedCollector{src: model.SourceIdentityRegistry, res: strip(ev.Identity)},
		License:   &cannedCollector{src: model.SourceLicenseBoard, res: strip(ev.License)},
		Address:   &cannedCollector{src: model.SourceAddress, res: strip(ev.Address)},
		Exclusion: &cannedCollector{src: model.SourceExclusionList, res: strip(ev.Exclusion)},
		Web:       &cannedCollector{src: model.SourceWebEnrichment, res: strip(ev.Web)},
	}
}

func testPipeline(set source.Set) *Pipeline {
	return New(set, nil, WithClock(func() time.Time { return testNow }))
}

func TestValidate_PlatinumGreenScenario(t *testing.T) {
	p := fullProvider()
	pl := testPipeline(cannedSet(cleanEvidence(p)))

	out := pl.Validate(context.Background(), p)

	assert.GreaterOrEqual(t, out.Confidence.Score, 0.85)
	assert.Equal(t, model.TierPlatinum, out.Confidence.Tier)
	assert.Equal(t, model.PathGreen, out.Confidence.Path)
	assert.Empty(t, out.FraudIndicators)
	assert.False(t, out.RequiresHumanReview)
	assert.True(t, out.Verification.RegistryVerified)
	assert.True(t, out.Verification.ExclusionClear)
	assert.True(t, out.Verification.LicenseActive)
}

func TestValidate_ExclusionHitForcesRed(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Exclusion.Exclusion = &model.ExclusionRecord{Excluded: true, ListName: "LEIE", Reason: "fraud conviction"}
	pl := testPipeline(cannedSet(ev))

	out := pl.Validate(context.Background(), p)

	assert.Equal(t, model.PathRed, out.Confidence.Path)
	assert.True(t, out.RequiresHumanReview)
	assert.NotEmpty(t, out.ReviewReason)
	assert.True(t, out.FraudIndicators.Contains("exclusion_list_hit"))
	assert.False(t, out.Verification.ExclusionClear)
}

func TestValidate_ZeroMatchUnvalidatedAddressIsQuestionableRed(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Identity.Identity = &model.IdentityMatch{ResultCount: 0, MatchConfidence: 0.9}
	ev.Address.Address = &model.AddressCheck{Deliverable: false}
	pl := testPipeline(cannedSet(ev))

	out := pl.Validate(context.Background(), p)

	assert.Equal(t, 0.0, out.Confidence.Breakdown.Identity)
	assert.Equal(t, model.TierQuestionable, out.Confidence.Tier)
	assert.Equal(t, model.PathRed, out.Confidence.Path)
	assert.True(t, out.RequiresHumanReview)
}

func TestValidate_WebTimeoutIsolated(t *testing.T) {
	p := fullProvider()
	set := cannedSet(cleanEvidence(p))
	set.Web = &cannedCollector{src: model.SourceWebEnrichment, err: context.DeadlineExceeded}
	pl := testPipeline(set)

	out := pl.Validate(context.Background(), p)

	assert.Equal(t, 0.0, out.Confidence.Breakdown.Enrichment)
	assert.Greater(t, out.Confidence.Breakdown.Identity, 0.0)
	assert.Equal(t, model.StatusTimeout, out.Execution.Sources[model.SourceWebEnrichment].Status)
	assert.NotEqual(t, model.PathError, out.Confidence.Path)
}

func TestValidate_Idempotent(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Identity.Identity.NPI = "9999999999"
	pl := testPipeline(cannedSet(ev))

	first := pl.Validate(context.Background(), p)
	second := pl.Validate(context.Background(), p)

	// Execution metadata carries real latencies and is excluded on purpose.
	assert.Equal(t, marshal(t, first.Golden), marshal(t, second.Golden))
	assert.Equal(t, marshal(t, first.Confidence), marshal(t, second.Confidence))
	assert.Equal(t, marshal(t, first.Conflicts), marshal(t, second.Conflicts))
	assert.Equal(t, marshal(t, first.FraudIndicators), marshal(t, second.FraudIndicators))
}

func TestValidate_PureStagePanicBecomesErrorOutcome(t *testing.T) {
	p := fullProvider()
	pl := New(cannedSet(cleanEvidence(p)), nil,
		WithClock(func() time.Time { panic("clock defect") }))

	out := pl.Validate(context.Background(), p)

	assert.Equal(t, model.PathError, out.Confidence.Path)
	assert.True(t, out.RequiresHumanReview)
	assert.Contains(t, out.ReviewReason, "internal fault")
	// Evidence collected before the fault is still reported.
	assert.Len(t, out.Execution.Sources, 5)
}

func TestValidate_AllSourcesDownStillReturns(t *testing.T) {
	p := fullProvider()
	set := source.Set{
		Identity:  &cannedCollector{src: model.SourceIdentityRegistry, err: context.DeadlineExceeded},
		License:   &cannedCollector{src: model.SourceLicenseBoard, err: source.ErrNotFound},
		Address:   &cannedCollector{src: model.SourceAddress, err: source.ErrInvalidResponse},
		Exclusion: &cannedCollector{src: model.SourceExclusionList, err: context.DeadlineExceeded},
		Web:       &cannedCollector{src: model.SourceWebEnrichment, err: source.ErrNotFound},
	}
	pl := testPipeline(set)

	out := pl.Validate(context.Background(), p)

	assert.NotEqual(t, model.PathError, out.Confidence.Path)
	assert.Equal(t, 0.0, out.Confidence.Breakdown.Identity)
	assert.Equal(t, 0.0, out.Confidence.Breakdown.Address)
	assert.Equal(t, 0.0, out.Confidence.Breakdown.Enrichment)
	// Completeness and freshness come from the input record alone.
	assert.Greater(t, out.Confidence.Breakdown.Completeness, 0.0)
	// Self-reported values still produce a golden record.
	assert.Equal(t, p.FullName, out.Golden.Value(model.FieldFullName))
}

func TestValidate_ScoreAlwaysInRange(t *testing.T) {
	providers := []model.NormalizedProvider{
		{},
		fullProvider(),
		{FullName: "X", LastUpdated: "1990-01-01"},
	}
	for _, p := range providers {
		pl := testPipeline(cannedSet(cleanEvidence(p)))
		out := pl.Validate(context.Background(), p)
		assert.GreaterOrEqual(t, out.Confidence.Score, 0.0)
		assert.LessOrEqual(t, out.Confidence.Score, 1.0)
	}
}

func TestFormatReport_ContainsVerdictAndSources(t *testing.T) {
	p := fullProvider()
	pl := testPipeline(cannedSet(cleanEvidence(p)))
	out := pl.Validate(context.Background(), p)

	report := FormatReport(out)
	assert.Contains(t, report, "Validation Report: Jane Doe")
	assert.Contains(t, report, "PLATINUM")
	assert.Contains(t, report, "identity_registry")
	assert.Contains(t, report, "## Golden Record")
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
