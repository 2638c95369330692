// Package exclusion provides a client for federal and state exclusion list
// lookups (OIG LEIE and SAM.gov mirrors).
package exclusion

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

const defaultBaseURL = "https://api.health-atlas.dev/exclusions"

// Client checks providers against exclusion lists.
type Client interface {
	Check(ctx context.Context, q Query) (*CheckResponse, error)
}

// Query identifies the provider to screen.
type Query struct {
	NPI   string
	Name  string
	State string
}

// CheckResponse is the screening result. Excluded false with an empty Match
// means the provider cleared every list queried.
type CheckResponse struct {
	Excluded     bool     `json:"excluded"`
	Match        *Match   `json:"match,omitempty"`
	ListsQueried []string `json:"lists_queried"`
}

// Match describes the exclusion record that hit.
type Match struct {
	ListName      string `json:"list_name"`
	Reason        string `json:"reason"`
	ActionDate    string `json:"action_date"`
	ReinstateDate string `json:"reinstate_date,omitempty"`
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

// NewClient creates an exclusion screening client.
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

func (c *httpClient) Check(ctx context.Context, q Query) (*CheckResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "exclusion: rate limit")
	}

	params := url.Values{}
	if q.NPI != "" {
		params.Set("npi", q.NPI)
	}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}

	reqURL := strings.TrimSuffix(c.baseURL, "/") + "/check?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("exclusion: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("exclusion: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out CheckResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "exclusion: parse response")
	}
	return &out, nil
}
