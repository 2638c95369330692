package pipeline

import (
	"fmt"
	"strings"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
)

// BuildGoldenRecord resolves each canonical field by walking sources in
// priority order and taking the first successful source that supplies a
// value, falling back to the provider's self-reported value. Provenance
// records the winner per field. Fields empty on both sides are omitted.
func BuildGoldenRecord(p model.NormalizedProvider, ev model.EvidenceSet) model.GoldenRecord {
	golden := model.GoldenRecord{Fields: make(map[string]model.GoldenField, len(model.ProviderFields))}

	results := ev.InPriorityOrder()
	comparable := make([]map[string]string, len(results))
	for i, res := range results {
		if res.OK() {
			comparable[i] = res.ComparableFields()
		}
	}

	for _, field := range model.ProviderFields {
		resolved := false
		for i, res := range results {
			if comparable[i] == nil {
				continue
			}
			val, ok := comparable[i][field]
			if !ok || val == "" {
				continue
			}
			golden.Fields[field] = model.GoldenField{Value: val, Source: string(res.Source)}
			resolved = true
			break
		}
		if resolved {
			continue
		}
		if own := p.Field(field); own != "" {
			golden.Fields[field] = model.GoldenField{Value: own, Source: model.SourceSelfReported}
		}
	}
	return golden
}

// RouteForReview decides whether a record needs a human. The reason string
// concatenates every triggering condition and is never empty when the first
// return value is true.
func RouteForReview(path model.Path, score float64, conflicts model.ConflictSet,
	cfg config.ReviewConfig) (bool, string) {

	scoreFloor := cfg.ScoreFloor
	if scoreFloor <= 0 {
		scoreFloor = config.DefaultReviewScoreFloor
	}
	conflictMax := cfg.ConflictMax
	if conflictMax <= 0 {
		conflictMax = config.DefaultReviewConflictMax
	}

	var reasons []string
	switch path {
	case model.PathRed:
		reasons = append(reasons, "routed to RED path")
	case model.PathError:
		reasons = append(reasons, "internal fault during validation")
	case model.PathYellow:
		if score < scoreFloor {
			reasons = append(reasons, fmt.Sprintf("YELLOW path with confidence %.2f below %.2f", score, scoreFloor))
		}
	}
	if len(conflicts) > conflictMax {
		reasons = append(reasons, fmt.Sprintf("%d cross-source conflicts exceed threshold %d", len(conflicts), conflictMax))
	}

	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}
