package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/config"
	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/pipeline"
	"github.com/health-atlas/atlas-cli/internal/source"
	"github.com/health-atlas/atlas-cli/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	require.NoError(t, st.Migrate(t.Context()))

	pl := pipeline.New(source.StubSet(), &config.Config{
		Scoring: config.DefaultScoring(),
		Review:  config.DefaultReview(),
		Sources: config.SourcesConfig{TimeoutSecs: 5},
	})
	return newRouter(st, pl), st
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Validate(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := map[string]string{
		"full_name": "Jane Doe",
		"npi":       "1234567893",
		"address":   "1 Main St",
		"city":      "Sacramento",
		"state":     "CA",
		"zip_code":  "95814",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var record model.ValidationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Jane Doe", record.ProviderName)
	assert.NotEmpty(t, record.Tier)
	assert.NotEmpty(t, record.Path)
}

func TestRouter_Validate_BadBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader([]byte(`{not json`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Validate_MissingIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"city": "Sacramento"})
	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "full_name or npi")
}

func TestRouter_DashboardStats(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/dashboard-stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalValidated)
}

func TestRouter_RunsRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	// Validate one provider so there is something to list.
	body, _ := json.Marshal(map[string]string{"full_name": "Jane Doe", "npi": "1234567893", "address": "1 Main St"})
	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var saved model.ValidationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var records []model.ValidationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, saved.ID, records[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+saved.ID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var fetched model.ValidationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	assert.Equal(t, saved.ID, fetched.ID)
	require.NotNil(t, fetched.Outcome)
}

func TestRouter_RunNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/no-such-id", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_ReviewResolve_Unknown(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/review/no-such-id/resolve", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRouter_ReviewQueue(t *testing.T) {
	router, st := newTestRouter(t)

	// Excluded fixture name routes RED and enqueues a review entry.
	body, _ := json.Marshal(map[string]string{"full_name": "Excluded Provider", "npi": "1234567893", "address": "1 Main St"})
	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	pending, err := st.CountPendingReviews(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, pending)

	req = httptest.NewRequest(http.MethodGet, "/api/review", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var entries []model.ReviewEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	req = httptest.NewRequest(http.MethodPost, "/api/review/"+entries[0].ID+"/resolve", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	pending, err = st.CountPendingReviews(t.Context())
	require.NoError(t, err)
	assert.Zero(t, pending)
}
