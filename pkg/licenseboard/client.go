// Package licenseboard provides a client for state medical board license
// verification endpoints.
package licenseboard

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

const defaultBaseURL = "https://api.health-atlas.dev/licenses"

// ErrNotFound is returned when the board has no license on file for the
// queried provider.
var ErrNotFound = eris.New("licenseboard: license not found")

// Client verifies medical licenses against state boards.
type Client interface {
	Verify(ctx context.Context, q Query) (*License, error)
}

// Query identifies the license to verify. State is required; Number and NPI
// narrow the lookup.
type Query struct {
	NPI    string
	Name   string
	Number string
	State  string
}

// License is the board's record.
type License struct {
	Number         string `json:"number"`
	State          string `json:"state"`
	Status         string `json:"status"`
	Board          string `json:"board"`
	IssueDate      string `json:"issue_date"`
	ExpirationDate string `json:"expiration_date"`
	Disciplinary   bool   `json:"disciplinary_action"`
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

// NewClient creates a license verification client.
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
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Verify(ctx context.Context, q Query) (*License, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "licenseboard: rate limit")
	}

	params := url.Values{}
	if q.NPI != "" {
		params.Set("npi", q.NPI)
	}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.Number != "" {
		params.Set("number", q.Number)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}

	reqURL := strings.TrimSuffix(c.baseURL, "/") + "/verify?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "licenseboard: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "licenseboard: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "licenseboard: read body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("licenseboard: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("licenseboard: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out License
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "licenseboard: parse response")
	}
	return &out, nil
}
