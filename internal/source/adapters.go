package source

import (
	"context"
	"errors"
	"strings"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/resilience"
	"github.com/health-atlas/atlas-cli/pkg/addrcheck"
	"github.com/health-atlas/atlas-cli/pkg/exclusion"
	"github.com/health-atlas/atlas-cli/pkg/licenseboard"
	"github.com/health-atlas/atlas-cli/pkg/npi"
	"github.com/health-atlas/atlas-cli/pkg/webpresence"
)

// Live adapters wrap the pkg clients in retry and circuit-breaker guards and
// map their responses onto evidence payloads. Each adapter owns its breaker so
// one flapping upstream never blocks the others.

var (
	_ Collector = (*IdentityAdapter)(nil)
	_ Collector = (*LicenseAdapter)(nil)
	_ Collector = (*AddressAdapter)(nil)
	_ Collector = (*ExclusionAdapter)(nil)
	_ Collector = (*WebAdapter)(nil)
)

func guardedRetry(src model.Source) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(string(src), "lookup")
	return cfg
}

func newBreaker(src model.Source) *resilience.Breaker {
	return resilience.NewBreaker(string(src), resilience.BreakerConfig{
		ShouldTrip: resilience.IsTransient,
	})
}

// NewLiveSet builds the full collector set backed by real upstream services.
func NewLiveSet(cfg config.SourcesConfig) Set {
	return Set{
		Identity: NewIdentityAdapter(npi.NewClient(endpointOpts(cfg.Registry, npi.WithBaseURL, nil, npi.WithRateLimit)...)),
		License: NewLicenseAdapter(licenseboard.NewClient(
			endpointOpts(cfg.License, licenseboard.WithBaseURL, licenseboard.WithAPIKey, licenseboard.WithRateLimit)...)),
		Address: NewAddressAdapter(addrcheck.NewClient(
			endpointOpts(cfg.AddrCheck, addrcheck.WithBaseURL, addrcheck.WithAPIKey, addrcheck.WithRateLimit)...)),
		Exclusion: NewExclusionAdapter(exclusion.NewClient(
			endpointOpts(cfg.Exclusion, exclusion.WithBaseURL, exclusion.WithAPIKey, exclusion.WithRateLimit)...)),
		Web: NewWebAdapter(webpresence.NewClient(
			endpointOpts(cfg.Web, webpresence.WithBaseURL, webpresence.WithAPIKey, webpresence.WithRateLimit)...)),
	}
}

// endpointOpts translates an endpoint config into client options. withKey may
// be nil for clients that take no credential.
func endpointOpts[O any](ep config.EndpointConfig, withBase func(string) O, withKey func(string) O, withRPS func(float64) O) []O {
	var opts []O
	if ep.BaseURL != "" {
		opts = append(opts, withBase(ep.BaseURL))
	}
	if ep.Key != "" && withKey != nil {
		opts = append(opts, withKey(ep.Key))
	}
	if ep.RPS > 0 {
		opts = append(opts, withRPS(ep.RPS))
	}
	return opts
}

// IdentityAdapter resolves providers against the NPI registry.
type IdentityAdapter struct {
	client  npi.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func NewIdentityAdapter(client npi.Client) *IdentityAdapter {
	return &IdentityAdapter{
		client:  client,
		retry:   guardedRetry(model.SourceIdentityRegistry),
		breaker: newBreaker(model.SourceIdentityRegistry),
	}
}

func (a *IdentityAdapter) Source() model.Source { return model.SourceIdentityRegistry }

func (a *IdentityAdapter) Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	q := npi.Query{NPI: p.NPI, State: p.State}
	if p.NPI == "" {
		q.FirstName, q.LastName = splitName(p.FullName)
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*npi.SearchResponse, error) {
		return resilience.CallVal(ctx, a.breaker, func(ctx context.Context) (*npi.SearchResponse, error) {
			return a.client.Search(ctx, q)
		})
	})
	if err != nil {
		return model.EvidenceResult{}, err
	}

	// Zero matches is valid evidence: the registry does not know this
	// provider, and the identity dimension will score accordingly.
	match := model.IdentityMatch{ResultCount: resp.ResultCount}
	if resp.ResultCount > 0 && len(resp.Results) > 0 {
		best := resp.Results[0]
		match.MatchConfidence = identityConfidence(p.NPI != "", resp.ResultCount)
		match.FullName = best.FullName()
		match.NPI = best.Number
		match.Specialty = best.PrimarySpecialty()
		if addr := best.PracticeAddress(); addr != nil {
			match.Address = addr.Address1
			match.City = addr.City
			match.State = addr.State
			match.ZipCode = addr.Zip
			match.Phone = addr.Telephone
		}
	}
	return model.EvidenceResult{
		Confidence: match.MatchConfidence,
		Identity:   &match,
	}, nil
}

func identityConfidence(byNPI bool, count int) float64 {
	switch {
	case count == 0:
		return 0
	case byNPI:
		return 0.98
	case count == 1:
		return 0.85
	default:
		return 0.85 / float64(count)
	}
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], parts[len(parts)-1]
}

// LicenseAdapter verifies licenses against the state board service.
type LicenseAdapter struct {
	client  licenseboard.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func NewLicenseAdapter(client licenseboard.Client) *LicenseAdapter {
	return &LicenseAdapter{
		client:  client,
		retry:   guardedRetry(model.SourceLicenseBoard),
		breaker: newBreaker(model.SourceLicenseBoard),
	}
}

func (a *LicenseAdapter) Source() model.Source { return model.SourceLicenseBoard }

func (a *LicenseAdapter) Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	lic, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*licenseboard.License, error) {
		return resilience.CallVal(ctx, a.breaker, func(ctx context.Context) (*licenseboard.License, error) {
			return a.client.Verify(ctx, licenseboard.Query{
				NPI:    p.NPI,
				Name:   p.FullName,
				Number: p.LicenseNumber,
				State:  p.State,
			})
		})
	})
	if err != nil {
		if errors.Is(err, licenseboard.ErrNotFound) {
			return model.EvidenceResult{}, ErrNotFound
		}
		return model.EvidenceResult{}, err
	}

	conf := 0.7
	if strings.EqualFold(lic.Status, "ACTIVE") {
		conf = 0.95
	}
	return model.EvidenceResult{
		Confidence: conf,
		License: &model.LicenseRecord{
			Status:         strings.ToUpper(lic.Status),
			Number:         lic.Number,
			State:          lic.State,
			ExpirationDate: lic.ExpirationDate,
			Board:          lic.Board,
		},
	}, nil
}

// AddressAdapter verifies practice addresses.
type AddressAdapter struct {
	client  addrcheck.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func NewAddressAdapter(client addrcheck.Client) *AddressAdapter {
	return &AddressAdapter{
		client:  client,
		retry:   guardedRetry(model.SourceAddress),
		breaker: newBreaker(model.SourceAddress),
	}
}

func (a *AddressAdapter) Source() model.Source { return model.SourceAddress }

func (a *AddressAdapter) Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	if p.Address == "" {
		return model.EvidenceResult{}, ErrNotFound
	}

	v, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*addrcheck.Verification, error) {
		return resilience.CallVal(ctx, a.breaker, func(ctx context.Context) (*addrcheck.Verification, error) {
			return a.client.Verify(ctx, addrcheck.Address{
				Street: p.Address,
				City:   p.City,
				State:  p.State,
				Zip:    p.ZipCode,
			})
		})
	})
	if err != nil {
		if errors.Is(err, addrcheck.ErrNotFound) {
			return model.EvidenceResult{}, ErrNotFound
		}
		return model.EvidenceResult{}, err
	}

	check := model.AddressCheck{
		Deliverable:     v.Deliverable,
		MedicalFacility: v.MedicalFacility,
		FacilityType:    v.FacilityType,
		POBox:           v.POBox,
	}
	if v.Standardized != nil {
		check.Address = v.Standardized.Street
		check.City = v.Standardized.City
		check.State = v.Standardized.State
		check.ZipCode = v.Standardized.Zip
	}
	conf := 0.5
	if v.Deliverable {
		conf = 0.9
	}
	return model.EvidenceResult{Confidence: conf, Address: &check}, nil
}

// ExclusionAdapter screens providers against exclusion lists.
type ExclusionAdapter struct {
	client  exclusion.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func NewExclusionAdapter(client exclusion.Client) *ExclusionAdapter {
	return &ExclusionAdapter{
		client:  client,
		retry:   guardedRetry(model.SourceExclusionList),
		breaker: newBreaker(model.SourceExclusionList),
	}
}

func (a *ExclusionAdapter) Source() model.Source { return model.SourceExclusionList }

func (a *ExclusionAdapter) Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*exclusion.CheckResponse, error) {
		return resilience.CallVal(ctx, a.breaker, func(ctx context.Context) (*exclusion.CheckResponse, error) {
			return a.client.Check(ctx, exclusion.Query{NPI: p.NPI, Name: p.FullName, State: p.State})
		})
	})
	if err != nil {
		return model.EvidenceResult{}, err
	}

	rec := model.ExclusionRecord{Excluded: resp.Excluded}
	if resp.Match != nil {
		rec.ListName = resp.Match.ListName
		rec.Reason = resp.Match.Reason
		rec.ActionDate = resp.Match.ActionDate
	}
	return model.EvidenceResult{Confidence: 0.99, Exclusion: &rec}, nil
}

// WebAdapter enriches providers with digital footprint signals.
type WebAdapter struct {
	client  webpresence.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func NewWebAdapter(client webpresence.Client) *WebAdapter {
	return &WebAdapter{
		client:  client,
		retry:   guardedRetry(model.SourceWebEnrichment),
		breaker: newBreaker(model.SourceWebEnrichment),
	}
}

func (a *WebAdapter) Source() model.Source { return model.SourceWebEnrichment }

func (a *WebAdapter) Lookup(ctx context.Context, p model.NormalizedProvider) (model.EvidenceResult, error) {
	profile, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*webpresence.Profile, error) {
		return resilience.CallVal(ctx, a.breaker, func(ctx context.Context) (*webpresence.Profile, error) {
			return a.client.Enrich(ctx, webpresence.Query{
				Name:    p.FullName,
				City:    p.City,
				State:   p.State,
				Website: p.Website,
			})
		})
	})
	if err != nil {
		return model.EvidenceResult{}, err
	}

	return model.EvidenceResult{
		Confidence: profile.FootprintScore,
		Web: &model.WebPresence{
			FootprintScore:   profile.FootprintScore,
			WebsiteReachable: profile.WebsiteReachable,
			ProfileCount:     profile.ProfileCount,
			Website:          p.Website,
			Signals:          profile.Signals,
		},
	}, nil
}
