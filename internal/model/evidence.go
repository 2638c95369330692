package model

// Source identifies one of the independent evidence sources consulted per
// record.
type Source string

const (
	SourceIdentityRegistry Source = "identity_registry"
	SourceLicenseBoard     Source = "license_board"
	SourceAddress          Source = "address"
	SourceExclusionList    Source = "exclusion_list"
	SourceWebEnrichment    Source = "web_enrichment"
)

// SourcePriority is the fixed order in which sources are consulted during
// reconciliation and golden record resolution. Conflict detection iterates
// this order so the output is stable for identical inputs.
var SourcePriority = []Source{
	SourceIdentityRegistry,
	SourceLicenseBoard,
	SourceAddress,
	SourceExclusionList,
	SourceWebEnrichment,
}

// SourceStatus tracks the lifecycle of a single collector call.
type SourceStatus string

const (
	StatusPending SourceStatus = "pending"
	StatusOK      SourceStatus = "ok"
	StatusFailed  SourceStatus = "failed"
	StatusTimeout SourceStatus = "timeout"
)

// FailureReason classifies why a collector call produced no evidence.
type FailureReason string

const (
	ReasonTimeout         FailureReason = "timeout"
	ReasonNotFound        FailureReason = "not_found"
	ReasonTransportError  FailureReason = "transport_error"
	ReasonInvalidResponse FailureReason = "invalid_response"
)

// IdentityMatch is the payload returned by the identity registry.
type IdentityMatch struct {
	ResultCount     int     `json:"result_count"`
	MatchConfidence float64 `json:"match_confidence"`
	FullName        string  `json:"full_name,omitempty"`
	NPI             string  `json:"npi,omitempty"`
	Address         string  `json:"address,omitempty"`
	City            string  `json:"city,omitempty"`
	State           string  `json:"state,omitempty"`
	ZipCode         string  `json:"zip_code,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Specialty       string  `json:"specialty,omitempty"`
}

// ExclusionRecord is the payload returned by the exclusion-list source.
type ExclusionRecord struct {
	Excluded   bool   `json:"excluded"`
	ListName   string `json:"list_name,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ActionDate string `json:"action_date,omitempty"`
}

// LicenseRecord is the payload returned by the state license board.
type LicenseRecord struct {
	Status         string `json:"status"`
	Number         string `json:"number,omitempty"`
	State          string `json:"state,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	Board          string `json:"board,omitempty"`
}

// AddressCheck is the payload returned by the address validation source.
type AddressCheck struct {
	Deliverable     bool   `json:"deliverable"`
	MedicalFacility bool   `json:"medical_facility"`
	FacilityType    string `json:"facility_type,omitempty"`
	POBox           bool   `json:"po_box"`
	Address         string `json:"address,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	ZipCode         string `json:"zip_code,omitempty"`
}

// WebPresence is the payload returned by the web-enrichment source.
type WebPresence struct {
	FootprintScore   float64  `json:"footprint_score"`
	WebsiteReachable bool     `json:"website_reachable"`
	ProfileCount     int      `json:"profile_count"`
	Website          string   `json:"website,omitempty"`
	Signals          []string `json:"signals,omitempty"`
}

// EvidenceResult is the tagged outcome of a single collector call: either a
// success carrying exactly one payload pointer (matching Source) plus a
// source-reported confidence, or a failure carrying a reason. Produced exactly
// once per pipeline run per source and never shared across records.
type EvidenceResult struct {
	Source     Source        `json:"source"`
	Status     SourceStatus  `json:"status"`
	Confidence float64       `json:"confidence,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`

	Identity  *IdentityMatch   `json:"identity,omitempty"`
	Exclusion *ExclusionRecord `json:"exclusion,omitempty"`
	License   *LicenseRecord   `json:"license,omitempty"`
	Address   *AddressCheck    `json:"address,omitempty"`
	Web       *WebPresence     `json:"web,omitempty"`
}

// OK reports whether the call produced usable evidence.
func (r EvidenceResult) OK() bool {
	return r.Status == StatusOK
}

// FailureResult builds an empty-evidence result for a failed collector call.
func FailureResult(src Source, status SourceStatus, reason FailureReason, errMsg string) EvidenceResult {
	return EvidenceResult{
		Source: src,
		Status: status,
		Reason: reason,
		Error:  errMsg,
	}
}

// ComparableFields returns the canonical field values this evidence asserts,
// used by conflict detection and golden record resolution. Only non-empty
// values from successful calls are returned.
func (r EvidenceResult) ComparableFields() map[string]string {
	if !r.OK() {
		return nil
	}
	fields := make(map[string]string)
	put := func(name, value string) {
		if value != "" {
			fields[name] = value
		}
	}

	switch r.Source {
	case SourceIdentityRegistry:
		if r.Identity != nil && r.Identity.ResultCount > 0 {
			put(FieldFullName, r.Identity.FullName)
			put(FieldNPI, r.Identity.NPI)
			put(FieldAddress, r.Identity.Address)
			put(FieldCity, r.Identity.City)
			put(FieldState, r.Identity.State)
			put(FieldZipCode, r.Identity.ZipCode)
			put(FieldPhone, r.Identity.Phone)
			put(FieldSpecialty, r.Identity.Specialty)
		}
	case SourceLicenseBoard:
		if r.License != nil {
			put(FieldLicenseNumber, r.License.Number)
			put(FieldState, r.License.State)
		}
	case SourceAddress:
		if r.Address != nil && r.Address.Deliverable {
			put(FieldAddress, r.Address.Address)
			put(FieldCity, r.Address.City)
			put(FieldState, r.Address.State)
			put(FieldZipCode, r.Address.ZipCode)
		}
	case SourceWebEnrichment:
		if r.Web != nil {
			put(FieldWebsite, r.Web.Website)
		}
	}
	return fields
}

// EvidenceSet holds one result per source for a single record's run.
type EvidenceSet struct {
	Identity  EvidenceResult `json:"identity_registry"`
	License   EvidenceResult `json:"license_board"`
	Address   EvidenceResult `json:"address"`
	Exclusion EvidenceResult `json:"exclusion_list"`
	Web       EvidenceResult `json:"web_enrichment"`
}

// BySource returns the result for the given source.
func (s EvidenceSet) BySource(src Source) EvidenceResult {
	switch src {
	case SourceIdentityRegistry:
		return s.Identity
	case SourceLicenseBoard:
		return s.License
	case SourceAddress:
		return s.Address
	case SourceExclusionList:
		return s.Exclusion
	case SourceWebEnrichment:
		return s.Web
	default:
		return EvidenceResult{Source: src, Status: StatusFailed, Reason: ReasonInvalidResponse}
	}
}

// InPriorityOrder returns all five results ordered by SourcePriority.
func (s EvidenceSet) InPriorityOrder() []EvidenceResult {
	out := make([]EvidenceResult, 0, len(SourcePriority))
	for _, src := range SourcePriority {
		out = append(out, s.BySource(src))
	}
	return out
}

// ExclusionHit reports whether the exclusion-list source confirmed a match.
func (s EvidenceSet) ExclusionHit() bool {
	return s.Exclusion.OK() && s.Exclusion.Exclusion != nil && s.Exclusion.Exclusion.Excluded
}
