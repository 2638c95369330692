package addrcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/resilience"
)

func TestVerify_MedicalFacility(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/verify", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got Address
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "1 Main St", got.Street)
		assert.Equal(t, "95814", got.Zip)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Verification{
			Deliverable:     true,
			FacilityType:    "clinic",
			MedicalFacility: true,
			Standardized:    &Address{Street: "1 MAIN ST", City: "SACRAMENTO", State: "CA", Zip: "95814"},
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Verify(context.Background(), Address{
		Street: "1 Main St", City: "Sacramento", State: "CA", Zip: "95814",
	})

	require.NoError(t, err)
	assert.True(t, got.Deliverable)
	assert.True(t, got.MedicalFacility)
	assert.Equal(t, "clinic", got.FacilityType)
	require.NotNil(t, got.Standardized)
	assert.Equal(t, "1 MAIN ST", got.Standardized.Street)
}

func TestVerify_POBox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Verification{
			Deliverable:  true,
			POBox:        true,
			FacilityType: "po_box",
		})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Verify(context.Background(), Address{Street: "PO Box 42", City: "Reno", State: "NV", Zip: "89501"})

	require.NoError(t, err)
	assert.True(t, got.POBox)
	assert.False(t, got.MedicalFacility)
}

func TestVerify_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Verify(context.Background(), Address{Street: "nowhere"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVerify_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`internal error`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Verify(context.Background(), Address{Street: "1 Main St"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.True(t, resilience.IsTransient(err))
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient()
	hc := c.(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.NotNil(t, hc.limiter)
}
