package source

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// Compile-time interface checks.
var (
	_ Collector = (*StubIdentityCollector)(nil)
	_ Collector = (*StubLicenseCollector)(nil)
	_ Collector = (*StubAddressCollector)(nil)
	_ Collector = (*StubExclusionCollector)(nil)
	_ Collector = (*StubWebCollector)(nil)
)

// StubSet returns a full collector set backed by deterministic canned data,
// for offline mode and demos. Results depend only on the provider's fields,
// so repeated runs of the same record are identical.
func StubSet() Set {
	return Set{
		Identity:  &StubIdentityCollector{},
		License:   &StubLicenseCollector{},
		Address:   &StubAddressCollector{},
		Exclusion: &StubExclusionCollector{},
		Web:       &StubWebCollector{},
	}
}

// seed derives a stable small integer from a provider so stub payloads vary
// across records but never across runs.
func seed(p model.NormalizedProvider) uint32 {
	h := fnv.New32a()
	h.Write([]byte(p.NPI))
	h.Write([]byte(strings.ToLower(p.FullName)))
	return h.Sum32()
}

// --- Identity registry stub ---

// StubIdentityCollector mimics a national registry lookup. Providers whose
// NPI ends in "00" get zero matches, exercising the no-match scoring path.
type StubIdentityCollector struct{}

func (s *StubIdentityCollector) Source() model.Source { return model.SourceIdentityRegistry }

func (s *StubIdentityCollector) Lookup(_ context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	if strings.HasSuffix(p.NPI, "00") {
		return model.EvidenceResult{
			Confidence: 0.9,
			Identity:   &model.IdentityMatch{ResultCount: 0},
		}, nil
	}
	match := &model.IdentityMatch{
		ResultCount:     1,
		MatchConfidence: 0.95,
		FullName:        p.FullName,
		NPI:             p.NPI,
		Address:         p.Address,
		City:            p.City,
		State:           p.State,
		ZipCode:         p.ZipCode,
		Phone:           p.Phone,
		Specialty:       p.Specialty,
	}
	return model.EvidenceResult{Confidence: 0.95, Identity: match}, nil
}

// --- License board stub ---

// StubLicenseCollector returns an ACTIVE license for most providers; NPIs
// ending in "99" come back EXPIRED.
type StubLicenseCollector struct{}

func (s *StubLicenseCollector) Source() model.Source { return model.SourceLicenseBoard }

func (s *StubLicenseCollector) Lookup(_ context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	status := "ACTIVE"
	expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
	if strings.HasSuffix(p.NPI, "99") {
		status = "EXPIRED"
		expiry = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	}
	number := p.LicenseNumber
	if number == "" {
		number = "UNKNOWN"
	}
	rec := &model.LicenseRecord{
		Status:         status,
		Number:         number,
		State:          p.State,
		ExpirationDate: expiry.Format("2006-01-02"),
		Board:          "State Medical Board",
	}
	return model.EvidenceResult{Confidence: 0.9, License: rec}, nil
}

// --- Address stub ---

// StubAddressCollector validates any non-empty address. Addresses containing
// "PO Box" are flagged, and a seed-derived minority are non-medical.
type StubAddressCollector struct{}

func (s *StubAddressCollector) Source() model.Source { return model.SourceAddress }

func (s *StubAddressCollector) Lookup(_ context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	if p.Address == "" {
		return model.EvidenceResult{}, ErrNotFound
	}
	poBox := strings.Contains(strings.ToLower(p.Address), "po box")
	medical := seed(p)%10 != 3 && !poBox
	facility := "clinic"
	if !medical {
		facility = "residential"
	}
	chk := &model.AddressCheck{
		Deliverable:     true,
		MedicalFacility: medical,
		FacilityType:    facility,
		POBox:           poBox,
		Address:         p.Address,
		City:            p.City,
		State:           p.State,
		ZipCode:         p.ZipCode,
	}
	return model.EvidenceResult{Confidence: 0.85, Address: chk}, nil
}

// --- Exclusion list stub ---

// StubExclusionCollector reports a clean record unless the provider's name
// contains "excluded", which is how demo fixtures trigger the RED override.
type StubExclusionCollector struct{}

func (s *StubExclusionCollector) Source() model.Source { return model.SourceExclusionList }

func (s *StubExclusionCollector) Lookup(_ context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	rec := &model.ExclusionRecord{Excluded: false}
	if strings.Contains(strings.ToLower(p.FullName), "excluded") {
		rec = &model.ExclusionRecord{
			Excluded:   true,
			ListName:   "LEIE",
			Reason:     "program-related conviction",
			ActionDate: "2023-11-01",
		}
	}
	return model.EvidenceResult{Confidence: 1.0, Exclusion: rec}, nil
}

// --- Web enrichment stub ---

// StubWebCollector fabricates a digital footprint from the provider seed.
type StubWebCollector struct{}

func (s *StubWebCollector) Source() model.Source { return model.SourceWebEnrichment }

func (s *StubWebCollector) Lookup(_ context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	n := seed(p)
	score := 0.4 + float64(n%60)/100.0
	web := &model.WebPresence{
		FootprintScore:   score,
		WebsiteReachable: p.Website != "",
		ProfileCount:     int(n%5) + 1,
		Website:          p.Website,
		Signals:          []string{"directory_listing", "review_profile"},
	}
	return model.EvidenceResult{Confidence: 0.7, Web: web}, nil
}
