package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the store unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS validated_providers (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	provider_name    TEXT NOT NULL,
	npi              TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip_code         TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL,
	tier             TEXT NOT NULL,
	path             TEXT NOT NULL,
	requires_review  BOOLEAN NOT NULL DEFAULT FALSE,
	fraud_count      INTEGER NOT NULL DEFAULT 0,
	outcome          JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_validated_providers_npi ON validated_providers(npi);
CREATE INDEX IF NOT EXISTS idx_validated_providers_path ON validated_providers(path);
CREATE INDEX IF NOT EXISTS idx_validated_providers_tier ON validated_providers(tier);
CREATE INDEX IF NOT EXISTS idx_validated_providers_review ON validated_providers(requires_review);
CREATE INDEX IF NOT EXISTS idx_validated_providers_created ON validated_providers(created_at DESC);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id   TEXT NOT NULL REFERENCES validated_providers(id),
	reason      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_queue_record ON review_queue(record_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveValidation(ctx context.Context, out model.ValidationOutcome) (*model.ValidationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	outcomeJSON, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal outcome")
	}

	rec := recordFromOutcome(id, out, now)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO validated_providers
			(id, provider_name, npi, city, state, zip_code, confidence_score, tier, path, requires_review, fraud_count, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, rec.ProviderName, rec.NPI, rec.City, rec.State, rec.ZipCode,
		rec.ConfidenceScore, string(rec.Tier), string(rec.Path), rec.RequiresReview,
		len(out.FraudIndicators), outcomeJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert validation")
	}
	return rec, nil
}

func recordFromOutcome(id string, out model.ValidationOutcome, createdAt time.Time) *model.ValidationRecord {
	o := out
	return &model.ValidationRecord{
		ID:              id,
		ProviderName:    out.Provider.FullName,
		NPI:             out.Provider.NPI,
		City:            out.Provider.City,
		State:           out.Provider.State,
		ZipCode:         out.Provider.ZipCode,
		ConfidenceScore: out.Confidence.Score,
		Tier:            out.Confidence.Tier,
		Path:            out.Confidence.Path,
		RequiresReview:  out.RequiresHumanReview,
		Outcome:         &o,
		CreatedAt:       createdAt,
	}
}

const selectValidationColumns = `id, provider_name, npi, city, state, zip_code, confidence_score, tier, path, requires_review, outcome, created_at`

func (s *PostgresStore) GetValidation(ctx context.Context, id string) (*model.ValidationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectValidationColumns+` FROM validated_providers WHERE id = $1`, id)

	rec, err := scanValidation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get validation")
	}
	return rec, nil
}

func scanValidation(row pgx.Row) (*model.ValidationRecord, error) {
	var rec model.ValidationRecord
	var tier, path string
	var outcomeJSON []byte
	err := row.Scan(&rec.ID, &rec.ProviderName, &rec.NPI, &rec.City, &rec.State, &rec.ZipCode,
		&rec.ConfidenceScore, &tier, &path, &rec.RequiresReview, &outcomeJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Tier = model.Tier(tier)
	rec.Path = model.Path(path)
	if len(outcomeJSON) > 0 {
		var out model.ValidationOutcome
		if err := json.Unmarshal(outcomeJSON, &out); err != nil {
			return nil, eris.Wrap(err, "unmarshal outcome")
		}
		rec.Outcome = &out
	}
	return &rec, nil
}

func (s *PostgresStore) ListValidations(ctx context.Context, filter RecordFilter) ([]model.ValidationRecord, error) {
	query := `SELECT ` + selectValidationColumns + ` FROM validated_providers WHERE 1=1`
	var args []any

	if filter.Path != "" {
		args = append(args, string(filter.Path))
		query += fmt.Sprintf(" AND path = $%d", len(args))
	}
	if filter.Tier != "" {
		args = append(args, string(filter.Tier))
		query += fmt.Sprintf(" AND tier = $%d", len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.RequiresReview != nil {
		args = append(args, *filter.RequiresReview)
		query += fmt.Sprintf(" AND requires_review = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validations")
	}
	defer rows.Close()

	var records []model.ValidationRecord
	for rows.Next() {
		rec, err := scanValidation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list validations")
}

func (s *PostgresStore) EnqueueReview(ctx context.Context, recordID, reason string) (*model.ReviewEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, record_id, reason, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, recordID, reason, string(model.ReviewPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue review")
	}
	return &model.ReviewEntry{
		ID:        id,
		RecordID:  recordID,
		Reason:    reason,
		Status:    model.ReviewPending,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) ListReviewQueue(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewEntry, error) {
	query := `SELECT id, record_id, reason, status, created_at, resolved_at FROM review_queue`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review queue")
	}
	defer rows.Close()

	var entries []model.ReviewEntry
	for rows.Next() {
		var e model.ReviewEntry
		var st string
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Reason, &st, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review entry")
		}
		e.Status = model.ReviewStatus(st)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list review queue")
}

func (s *PostgresStore) ResolveReview(ctx context.Context, reviewID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
		string(model.ReviewResolved), time.Now().UTC(), reviewID, string(model.ReviewPending),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: resolve review")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: review %s not found or already resolved", reviewID)
	}
	return nil
}

func (s *PostgresStore) CountPendingReviews(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = $1`, string(model.ReviewPending),
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count pending reviews")
}

func (s *PostgresStore) DashboardStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		PathCounts: make(map[string]int),
		TierCounts: make(map[string]int),
	}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE requires_review),
		       COUNT(*) FILTER (WHERE fraud_count > 0),
		       COALESCE(AVG(confidence_score), 0)
		FROM validated_providers`,
	).Scan(&stats.TotalValidated, &stats.NeedsReview, &stats.FraudDetected, &stats.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dashboard totals")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT path, tier, COUNT(*) FROM validated_providers GROUP BY path, tier`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dashboard grouping")
	}
	defer rows.Close()

	for rows.Next() {
		var path, tier string
		var n int
		if err := rows.Scan(&path, &tier, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dashboard row")
		}
		stats.PathCounts[path] += n
		stats.TierCounts[tier] += n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: dashboard grouping")
}
