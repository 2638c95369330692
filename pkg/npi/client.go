// Package npi provides a client for the NPPES NPI Registry API.
package npi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/health-atlas/atlas-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://npiregistry.cms.hhs.gov/api/"
	apiVersion     = "2.1"
)

// Client defines the NPI registry operations.
type Client interface {
	// Search queries the registry by NPI number or demographic fields.
	Search(ctx context.Context, q Query) (*SearchResponse, error)
}

// Query holds registry search parameters. NPI alone is sufficient; name and
// state narrow a demographic search when no NPI is known.
type Query struct {
	NPI       string
	FirstName string
	LastName  string
	State     string
}

// SearchResponse is the parsed registry response.
type SearchResponse struct {
	ResultCount int      `json:"result_count"`
	Results     []Result `json:"results"`
}

// Result is one registry record.
type Result struct {
	Number    string     `json:"number"`
	Basic     Basic      `json:"basic"`
	Addresses []Address  `json:"addresses"`
	Taxonomy  []Taxonomy `json:"taxonomies"`
}

// Basic holds the provider's name block.
type Basic struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name"`
	Status           string `json:"status"`
	LastUpdated      string `json:"last_updated"`
}

// Address is one practice or mailing location.
type Address struct {
	Purpose   string `json:"address_purpose"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"postal_code"`
	Telephone string `json:"telephone_number"`
}

// Taxonomy is one specialty classification.
type Taxonomy struct {
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
	State   string `json:"state"`
	License string `json:"license"`
}

// FullName assembles the display name for a result.
func (r Result) FullName() string {
	if r.Basic.OrganizationName != "" {
		return r.Basic.OrganizationName
	}
	return strings.TrimSpace(r.Basic.FirstName + " " + r.Basic.LastName)
}

// PracticeAddress returns the location-purpose address, or the first one.
func (r Result) PracticeAddress() *Address {
	for i := range r.Addresses {
		if strings.EqualFold(r.Addresses[i].Purpose, "LOCATION") {
			return &r.Addresses[i]
		}
	}
	if len(r.Addresses) > 0 {
		return &r.Addresses[0]
	}
	return nil
}

// PrimarySpecialty returns the primary taxonomy description, or the first.
func (r Result) PrimarySpecialty() string {
	for _, tx := range r.Taxonomy {
		if tx.Primary {
			return tx.Desc
		}
	}
	if len(r.Taxonomy) > 0 {
		return r.Taxonomy[0].Desc
	}
	return ""
}

// Option configures the registry client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an NPI registry client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "npi: rate limit")
	}

	params := url.Values{"version": {apiVersion}}
	if q.NPI != "" {
		params.Set("number", q.NPI)
	}
	if q.FirstName != "" {
		params.Set("first_name", q.FirstName)
	}
	if q.LastName != "" {
		params.Set("last_name", q.LastName)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}

	reqURL := strings.TrimSuffix(c.baseURL, "/") + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "npi: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "npi: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "npi: read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("npi: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("npi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "npi: parse response")
	}
	return &out, nil
}
