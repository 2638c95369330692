package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func sampleOutcome() model.ValidationOutcome {
	return model.ValidationOutcome{
		Provider: model.NormalizedProvider{
			FullName: "Jane Doe", NPI: "1234567893", City: "Sacramento", State: "CA", ZipCode: "95814",
		},
		Confidence: model.ConfidenceResult{
			Score: 0.88, Tier: model.TierPlatinum, Path: model.PathGreen,
		},
	}
}

func TestPostgresStore_SaveValidation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO validated_providers`).
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "1234567893", "Sacramento", "CA", "95814",
			0.88, "PLATINUM", "GREEN", false, 0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.SaveValidation(context.Background(), sampleOutcome())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.TierPlatinum, rec.Tier)
	assert.Equal(t, 0.88, rec.ConfidenceScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetValidation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM validated_providers WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetValidation(context.Background(), "missing-id")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetValidation_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	outcomeJSON, err := json.Marshal(sampleOutcome())
	require.NoError(t, err)
	created := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM validated_providers WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider_name", "npi", "city", "state", "zip_code",
			"confidence_score", "tier", "path", "requires_review", "outcome", "created_at",
		}).AddRow("rec-1", "Jane Doe", "1234567893", "Sacramento", "CA", "95814",
			0.88, "PLATINUM", "GREEN", false, outcomeJSON, created))

	rec, err := s.GetValidation(context.Background(), "rec-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Jane Doe", rec.ProviderName)
	assert.Equal(t, model.PathGreen, rec.Path)
	require.NotNil(t, rec.Outcome)
	assert.Equal(t, "1234567893", rec.Outcome.Provider.NPI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListValidations_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	outcomeJSON, err := json.Marshal(sampleOutcome())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM validated_providers WHERE 1=1 AND path = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("RED", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider_name", "npi", "city", "state", "zip_code",
			"confidence_score", "tier", "path", "requires_review", "outcome", "created_at",
		}).AddRow("rec-2", "John Roe", "1111111111", "", "TX", "",
			0.31, "QUESTIONABLE", "RED", true, outcomeJSON, time.Now()))

	records, err := s.ListValidations(context.Background(), RecordFilter{Path: model.PathRed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.PathRed, records[0].Path)
	assert.True(t, records[0].RequiresReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnqueueReview(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO review_queue`).
		WithArgs(pgxmock.AnyArg(), "rec-1", "routed to RED path", "PENDING", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := s.EnqueueReview(context.Background(), "rec-1", "routed to RED path")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, entry.Status)
	assert.Equal(t, "rec-1", entry.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveReview_AlreadyResolved(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE review_queue SET status`).
		WithArgs("RESOLVED", pgxmock.AnyArg(), "rev-1", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResolveReview(context.Background(), "rev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already resolved")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountPendingReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM review_queue WHERE status = \$1`).
		WithArgs("PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountPendingReviews(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DashboardStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\),`).
		WillReturnRows(pgxmock.NewRows([]string{"total", "review", "fraud", "avg"}).
			AddRow(42, 9, 4, 0.71))
	mock.ExpectQuery(`SELECT path, tier, COUNT\(\*\) FROM validated_providers GROUP BY path, tier`).
		WillReturnRows(pgxmock.NewRows([]string{"path", "tier", "count"}).
			AddRow("GREEN", "PLATINUM", 20).
			AddRow("YELLOW", "GOLD", 13).
			AddRow("RED", "QUESTIONABLE", 9))

	stats, err := s.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalValidated)
	assert.Equal(t, 9, stats.NeedsReview)
	assert.Equal(t, 4, stats.FraudDetected)
	assert.InDelta(t, 0.71, stats.AvgConfidence, 1e-9)
	assert.Equal(t, 20, stats.PathCounts["GREEN"])
	assert.Equal(t, 13, stats.TierCounts["GOLD"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
