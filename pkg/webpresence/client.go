// Package webpresence provides a client for digital footprint enrichment:
// practice websites, directory profiles, and review signals.
package webpresence

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

const defaultBaseURL = "https://api.health-atlas.dev/presence"

// Client enriches a provider with web presence signals.
type Client interface {
	Enrich(ctx context.Context, q Query) (*Profile, error)
}

// Query identifies the provider to enrich.
type Query struct {
	Name    string
	City    string
	State   string
	Website string
}

// Profile summarizes the provider's digital footprint. A FootprintScore of
// zero with no signals means nothing was found, which is itself evidence.
type Profile struct {
	FootprintScore   float64  `json:"footprint_score"`
	WebsiteReachable bool     `json:"website_reachable"`
	ProfileCount     int      `json:"profile_count"`
	Signals          []string `json:"signals"`
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

// NewClient creates a web presence client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Enrich(ctx context.Context, q Query) (*Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "webpresence: rate limit")
	}

	params := url.Values{}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.Website != "" {
		params.Set("website", q.Website)
	}

	reqURL := strings.TrimSuffix(c.baseURL, "/") + "/enrich?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "webpresence: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "webpresence: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "webpresence: read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("webpresence: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("webpresence: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out Profile
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "webpresence: parse response")
	}
	return &out, nil
}
