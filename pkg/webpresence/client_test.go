package webpresence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/resilience"
)

func TestEnrich_Found(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/enrich", r.URL.Path)
		assert.Equal(t, "Jane Doe", r.URL.Query().Get("name"))
		assert.Equal(t, "CA", r.URL.Query().Get("state"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Profile{
			FootprintScore:   0.82,
			WebsiteReachable: true,
			ProfileCount:     4,
			Signals:          []string{"practice_website", "healthgrades_profile"},
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Enrich(context.Background(), Query{Name: "Jane Doe", City: "Sacramento", State: "CA"})

	require.NoError(t, err)
	assert.InDelta(t, 0.82, got.FootprintScore, 1e-9)
	assert.True(t, got.WebsiteReachable)
	assert.Len(t, got.Signals, 2)
}

func TestEnrich_NothingFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Profile{})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Enrich(context.Background(), Query{Name: "Nobody"})

	require.NoError(t, err)
	assert.Zero(t, got.FootprintScore)
	assert.Zero(t, got.ProfileCount)
	assert.Empty(t, got.Signals)
}

func TestEnrich_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(`gateway timeout`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Enrich(context.Background(), Query{Name: "Jane Doe"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
	assert.True(t, resilience.IsTransient(err))
}

func TestEnrich_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Enrich(context.Background(), Query{Name: "Jane Doe"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient()
	hc := c.(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.NotNil(t, hc.http)
}
