// Package addrcheck provides a client for address deliverability and
// facility-type verification.
package addrcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/health-atlas/atlas-cli/internal/resilience"
)

const defaultBaseURL = "https://api.health-atlas.dev/address"

// ErrNotFound is returned when the address cannot be matched at all.
var ErrNotFound = eris.New("addrcheck: address not found")

// Client verifies practice addresses.
type Client interface {
	Verify(ctx context.Context, addr Address) (*Verification, error)
}

// Address is the location to verify.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Verification is the service's judgment on the address.
type Verification struct {
	Deliverable     bool     `json:"deliverable"`
	POBox           bool     `json:"po_box"`
	Residential     bool     `json:"residential"`
	FacilityType    string   `json:"facility_type"`
	MedicalFacility bool     `json:"medical_facility"`
	Standardized    *Address `json:"standardized,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithAPIKey sets the access key sent with each request.
func WithAPIKey(key string) Option {
	return func(c *httpClient) { c.apiKey = key }
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
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an address verification client.
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
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Verify(ctx context.Context, addr Address) (*Verification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "addrcheck: rate limit")
	}

	payload, err := json.Marshal(addr)
	if err != nil {
		return nil, eris.Wrap(err, "addrcheck: encode request")
	}

	reqURL := strings.TrimSuffix(c.baseURL, "/") + "/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "addrcheck: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "addrcheck: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "addrcheck: read body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("addrcheck: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("addrcheck: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out Verification
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "addrcheck: parse response")
	}
	return &out, nil
}
