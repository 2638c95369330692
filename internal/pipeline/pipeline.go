package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/source"
)

// Pipeline validates one provider record at a time. It holds no mutable
// state between runs, so a single Pipeline is safe to share across
// concurrently processed records.
type Pipeline struct {
	collectors source.Set
	scoring    config.ScoringConfig
	review     config.ReviewConfig
	timeout    time.Duration

	// now is injectable so freshness and staleness tests are deterministic.
	now func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used for freshness decay.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

// WithLookupTimeout overrides the per-source lookup timeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(pl *Pipeline) { pl.timeout = d }
}

// New builds a Pipeline over the given collector set and policy config.
func New(collectors source.Set, cfg *config.Config, opts ...Option) *Pipeline {
	pl := &Pipeline{
		collectors: collectors,
		scoring:    config.DefaultScoring(),
		review:     config.DefaultReview(),
		now:        time.Now,
		timeout:    time.Duration(config.DefaultCollectorTimeoutSecs) * time.Second,
	}
	if cfg != nil {
		pl.scoring = cfg.Scoring
		pl.review = cfg.Review
		if cfg.Sources.TimeoutSecs > 0 {
			pl.timeout = time.Duration(cfg.Sources.TimeoutSecs) * time.Second
		}
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Validate runs the full pipeline for one record: concurrent evidence
// collection, conflict detection, fraud screening, scoring, and golden
// record assembly. It always returns a structured outcome. Collector
// failures degrade the relevant dimensions; a defect in a pure stage yields
// a PathError outcome with requires_human_review set, never a panic to the
// caller.
func (pl *Pipeline) Validate(ctx context.Context, p model.NormalizedProvider) model.ValidationOutcome {
	log := zap.L().With(zap.String("npi", p.NPI), zap.String("provider", p.FullName))
	log.Info("validation started")

	ev, meta := source.Collect(ctx, pl.collectors, p, source.CollectOptions{Timeout: pl.timeout})

	outcome, fault := pl.reconcileAndScore(p, ev, meta)
	if fault != nil {
		log.Error("internal fault in pure stage", zap.Error(fault))
		return errorOutcome(p, ev, meta, fault)
	}

	log.Info("validation finished",
		zap.Float64("confidence", outcome.Confidence.Score),
		zap.String("tier", string(outcome.Confidence.Tier)),
		zap.String("path", string(outcome.Confidence.Path)),
		zap.Int("conflicts", len(outcome.Conflicts)),
		zap.Int("fraud_indicators", len(outcome.FraudIndicators)),
		zap.Bool("requires_review", outcome.RequiresHumanReview),
		zap.Int64("duration_ms", meta.DurationMS))
	return outcome
}

// reconcileAndScore runs the pure stages under a recover guard. The stages
// never do I/O, so any panic here is a programming defect surfaced as an
// InternalFault rather than a crash.
func (pl *Pipeline) reconcileAndScore(p model.NormalizedProvider, ev model.EvidenceSet,
	meta model.ExecutionMetadata) (outcome model.ValidationOutcome, fault error) {

	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("pure stage panic: %v", r)
		}
	}()

	now := pl.now()

	conflicts := DetectConflicts(p, ev)
	indicators := DetectFraud(p, ev, conflicts, pl.scoring, pl.review.ConflictMax, now)

	breakdown := ScoreEvidence(p, ev, indicators, pl.scoring, now)
	score := WeightedScore(breakdown, pl.scoring)
	tier, path := Classify(score, indicators, ev.ExclusionHit(), pl.scoring)

	golden := BuildGoldenRecord(p, ev)
	needsReview, reason := RouteForReview(path, score, conflicts, pl.review)

	return model.ValidationOutcome{
		Provider: p,
		Golden:   golden,
		Confidence: model.ConfidenceResult{
			Score:     score,
			Tier:      tier,
			Path:      path,
			Breakdown: breakdown,
		},
		Conflicts:           conflicts,
		FraudIndicators:     indicators,
		Verification:        buildVerification(ev),
		Execution:           meta,
		RequiresHumanReview: needsReview,
		ReviewReason:        reason,
	}, nil
}

// errorOutcome is the terminal shape for an InternalFault: the record is
// preserved with whatever evidence was collected, routed to ERROR, and
// flagged for a human.
func errorOutcome(p model.NormalizedProvider, ev model.EvidenceSet,
	meta model.ExecutionMetadata, fault error) model.ValidationOutcome {

	return model.ValidationOutcome{
		Provider: p,
		Golden:   model.GoldenRecord{Fields: map[string]model.GoldenField{}},
		Confidence: model.ConfidenceResult{
			Score: 0,
			Tier:  model.TierQuestionable,
			Path:  model.PathError,
		},
		Verification:        buildVerification(ev),
		Execution:           meta,
		RequiresHumanReview: true,
		ReviewReason:        fmt.Sprintf("validation aborted by internal fault: %v", fault),
	}
}

// buildVerification derives the dashboard summary flags from raw evidence.
func buildVerification(ev model.EvidenceSet) model.VerificationStatus {
	var vs model.VerificationStatus
	if ev.Identity.OK() && ev.Identity.Identity != nil {
		vs.RegistryVerified = ev.Identity.Identity.ResultCount > 0
	}
	if ev.Exclusion.OK() && ev.Exclusion.Exclusion != nil {
		vs.ExclusionClear = !ev.Exclusion.Exclusion.Excluded
	}
	if ev.License.OK() && ev.License.License != nil {
		vs.LicenseActive = strings.EqualFold(ev.License.License.Status, "ACTIVE")
	}
	if ev.Address.OK() && ev.Address.Address != nil {
		vs.AddressValidated = ev.Address.Address.Deliverable
	}
	if ev.Web.OK() && ev.Web.Web != nil {
		vs.DigitalFootprintScore = clamp01(ev.Web.Web.FootprintScore)
	}
	return vs
}
