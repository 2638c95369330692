package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
)

// Fraud indicator severities. Anything at or above the high-severity
// threshold blocks PLATINUM and forces the RED path logic to look twice.
const (
	sevExclusionHit       = 1.0
	sevLicenseNotActive   = 0.8
	sevIdentityZeroMatch  = 0.7
	sevNonMedicalFacility = 0.5
	sevPOBoxAddress       = 0.4
	sevHighConflictCount  = 0.4
	sevSuspiciousPhone    = 0.3
	sevStaleRecord        = 0.3
)

// fraudInput bundles everything the indicator predicates look at.
type fraudInput struct {
	provider    model.NormalizedProvider
	evidence    model.EvidenceSet
	conflicts   model.ConflictSet
	scoring     config.ScoringConfig
	conflictMax int
	now         time.Time
}

// fraudRule is one row of the indicator table. Rules are evaluated in order
// and every firing rule contributes an indicator, so output ordering is
// stable across runs.
type fraudRule struct {
	name     string
	severity float64
	check    func(in fraudInput) (bool, string)
}

var fraudRules = []fraudRule{
	{
		name:     "exclusion_list_hit",
		severity: sevExclusionHit,
		check: func(in fraudInput) (bool, string) {
			if !in.evidence.ExclusionHit() {
				return false, ""
			}
			rec := in.evidence.Exclusion.Exclusion
			return true, fmt.Sprintf("provider appears on %s (%s)", rec.ListName, rec.Reason)
		},
	},
	{
		name:     "license_not_active",
		severity: sevLicenseNotActive,
		check: func(in fraudInput) (bool, string) {
			res := in.evidence.License
			if !res.OK() || res.License == nil {
				return false, ""
			}
			status := strings.ToUpper(res.License.Status)
			if status == "" || status == "ACTIVE" {
				return false, ""
			}
			return true, fmt.Sprintf("license status is %s", status)
		},
	},
	{
		name:     "identity_zero_match",
		severity: sevIdentityZeroMatch,
		check: func(in fraudInput) (bool, string) {
			res := in.evidence.Identity
			if !res.OK() || res.Identity == nil {
				return false, ""
			}
			if res.Identity.ResultCount > 0 {
				return false, ""
			}
			return true, "no registry record matches the claimed identity"
		},
	},
	{
		name:     "non_medical_facility",
		severity: sevNonMedicalFacility,
		check: func(in fraudInput) (bool, string) {
			res := in.evidence.Address
			if !res.OK() || res.Address == nil || !res.Address.Deliverable {
				return false, ""
			}
			if res.Address.MedicalFacility {
				return false, ""
			}
			return true, fmt.Sprintf("practice address resolves to a %s", nonEmpty(res.Address.FacilityType, "non-medical location"))
		},
	},
	{
		name:     "po_box_address",
		severity: sevPOBoxAddress,
		check: func(in fraudInput) (bool, string) {
			res := in.evidence.Address
			if !res.OK() || res.Address == nil || !res.Address.POBox {
				return false, ""
			}
			return true, "practice address is a PO box"
		},
	},
	{
		name:     "high_conflict_count",
		severity: sevHighConflictCount,
		check: func(in fraudInput) (bool, string) {
			if len(in.conflicts) <= in.conflictMax {
				return false, ""
			}
			return true, fmt.Sprintf("%d fields disagree with source evidence (threshold %d)", len(in.conflicts), in.conflictMax)
		},
	},
	{
		name:     "unreachable_phone_pattern",
		severity: sevSuspiciousPhone,
		check: func(in fraudInput) (bool, string) {
			if !suspiciousPhone(in.provider.Phone) {
				return false, ""
			}
			return true, "phone number matches a known unreachable pattern"
		},
	},
	{
		name:     "stale_record",
		severity: sevStaleRecord,
		check: func(in fraudInput) (bool, string) {
			days := in.scoring.StaleRecordDays
			if days <= 0 {
				days = config.DefaultStaleRecordDays
			}
			updated, ok := parseLastUpdated(in.provider.LastUpdated)
			if !ok {
				return false, ""
			}
			age := in.now.Sub(updated)
			if age <= time.Duration(days)*24*time.Hour {
				return false, ""
			}
			return true, fmt.Sprintf("record last updated %d days ago", int(age.Hours()/24))
		},
	},
}

// DetectFraud evaluates the indicator table against the collected evidence.
// Failed sources never fire indicators; absence of evidence is handled by
// scoring, not by fraud screening.
func DetectFraud(p model.NormalizedProvider, ev model.EvidenceSet, conflicts model.ConflictSet,
	scoring config.ScoringConfig, conflictMax int, now time.Time) model.FraudIndicatorSet {

	if conflictMax <= 0 {
		conflictMax = config.DefaultReviewConflictMax
	}
	in := fraudInput{
		provider:    p,
		evidence:    ev,
		conflicts:   conflicts,
		scoring:     scoring,
		conflictMax: conflictMax,
		now:         now,
	}

	var out model.FraudIndicatorSet
	for _, rule := range fraudRules {
		fired, detail := rule.check(in)
		if !fired {
			continue
		}
		out = append(out, model.FraudIndicator{
			Name:     rule.name,
			Severity: rule.severity,
			Detail:   detail,
		})
	}
	return out
}

// suspiciousPhone flags numbers that cannot be real subscriber lines: the
// 555-01xx directory-assistance range, all-identical digits, and sequential
// runs commonly used as filler.
func suspiciousPhone(phone string) bool {
	digits := digitsOnly(phone)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return false
	}
	if digits[3:6] == "555" && digits[6:8] == "01" {
		return true
	}
	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}
	switch digits {
	case "1234567890", "0123456789", "9876543210":
		return true
	}
	return false
}

// parseLastUpdated accepts the date layouts roster files actually contain.
func parseLastUpdated(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		"2006-01-02",
		time.RFC3339,
		"01/02/2006",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
