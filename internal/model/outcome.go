package model

import "time"

// SourceExecution is the observational record of one collector call. It is
// never consulted by scoring.
type SourceExecution struct {
	Source     Source       `json:"source"`
	Status     SourceStatus `json:"status"`
	LatencyMS  int64        `json:"latency_ms"`
	Confidence float64      `json:"confidence,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// ExecutionMetadata captures per-source execution detail for one record run.
type ExecutionMetadata struct {
	Sources    map[Source]SourceExecution `json:"sources"`
	StartedAt  time.Time                  `json:"started_at"`
	DurationMS int64                      `json:"duration_ms"`
}

// VerificationStatus is the at-a-glance summary consumed by dashboards.
type VerificationStatus struct {
	RegistryVerified      bool    `json:"registry_verified"`
	ExclusionClear        bool    `json:"exclusion_clear"`
	LicenseActive         bool    `json:"license_active"`
	AddressValidated      bool    `json:"address_validated"`
	DigitalFootprintScore float64 `json:"digital_footprint_score"`
}

// ValidationOutcome is the single immutable output of one record's run. The
// caller always receives one of these, never an error, for record-level
// conditions.
type ValidationOutcome struct {
	Provider            NormalizedProvider `json:"provider"`
	Golden              GoldenRecord       `json:"golden_record"`
	Confidence          ConfidenceResult   `json:"confidence"`
	Conflicts           ConflictSet        `json:"conflicts"`
	FraudIndicators     FraudIndicatorSet  `json:"fraud_indicators"`
	Verification        VerificationStatus `json:"verification_status"`
	Execution           ExecutionMetadata  `json:"execution_metadata"`
	RequiresHumanReview bool               `json:"requires_human_review"`
	ReviewReason        string             `json:"review_reason,omitempty"`
}

// ValidationRecord is a persisted validation outcome with its storage
// identity and the columns dashboards filter on.
type ValidationRecord struct {
	ID              string             `json:"id"`
	ProviderName    string             `json:"provider_name"`
	NPI             string             `json:"npi"`
	City            string             `json:"city,omitempty"`
	State           string             `json:"state,omitempty"`
	ZipCode         string             `json:"zip_code,omitempty"`
	ConfidenceScore float64            `json:"confidence_score"`
	Tier            Tier               `json:"confidence_tier"`
	Path            Path               `json:"path"`
	RequiresReview  bool               `json:"requires_review"`
	Outcome         *ValidationOutcome `json:"outcome,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ReviewStatus tracks a review queue entry's lifecycle.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewResolved ReviewStatus = "RESOLVED"
)

// ReviewEntry is one record awaiting (or finished with) human review.
type ReviewEntry struct {
	ID         string       `json:"id"`
	RecordID   string       `json:"record_id"`
	Reason     string       `json:"reason"`
	Status     ReviewStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}
