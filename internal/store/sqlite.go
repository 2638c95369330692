package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-machine use; no external database required.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS validated_providers (
	id               TEXT PRIMARY KEY,
	provider_name    TEXT NOT NULL,
	npi              TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	zip_code         TEXT NOT NULL DEFAULT '',
	confidence_score REAL NOT NULL,
	tier             TEXT NOT NULL,
	path             TEXT NOT NULL,
	requires_review  INTEGER NOT NULL DEFAULT 0,
	fraud_count      INTEGER NOT NULL DEFAULT 0,
	outcome          TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_validated_providers_npi ON validated_providers(npi);
CREATE INDEX IF NOT EXISTS idx_validated_providers_path ON validated_providers(path);
CREATE INDEX IF NOT EXISTS idx_validated_providers_tier ON validated_providers(tier);
CREATE INDEX IF NOT EXISTS idx_validated_providers_review ON validated_providers(requires_review);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL REFERENCES validated_providers(id),
	reason      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_queue_record ON review_queue(record_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveValidation(ctx context.Context, out model.ValidationOutcome) (*model.ValidationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	outcomeJSON, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal outcome")
	}

	rec := recordFromOutcome(id, out, now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validated_providers
			(id, provider_name, npi, city, state, zip_code, confidence_score, tier, path, requires_review, fraud_count, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.ProviderName, rec.NPI, rec.City, rec.State, rec.ZipCode,
		rec.ConfidenceScore, string(rec.Tier), string(rec.Path), rec.RequiresReview,
		len(out.FraudIndicators), string(outcomeJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert validation")
	}
	return rec, nil
}

func (s *SQLiteStore) GetValidation(ctx context.Context, id string) (*model.ValidationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectValidationColumns+` FROM validated_providers WHERE id = ?`, id)

	rec, err := scanValidationSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get validation")
	}
	return rec, nil
}

// sqlScanner covers both *sql.Row and *sql.Rows.
type sqlScanner interface {
	Scan(dest ...any) error
}

func scanValidationSQL(row sqlScanner) (*model.ValidationRecord, error) {
	var rec model.ValidationRecord
	var tier, path, outcomeJSON string
	err := row.Scan(&rec.ID, &rec.ProviderName, &rec.NPI, &rec.City, &rec.State, &rec.ZipCode,
		&rec.ConfidenceScore, &tier, &path, &rec.RequiresReview, &outcomeJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Tier = model.Tier(tier)
	rec.Path = model.Path(path)
	if outcomeJSON != "" {
		var out model.ValidationOutcome
		if err := json.Unmarshal([]byte(outcomeJSON), &out); err != nil {
			return nil, eris.Wrap(err, "unmarshal outcome")
		}
		rec.Outcome = &out
	}
	return &rec, nil
}

func (s *SQLiteStore) ListValidations(ctx context.Context, filter RecordFilter) ([]model.ValidationRecord, error) {
	query := `SELECT ` + selectValidationColumns + ` FROM validated_providers WHERE 1=1`
	var args []any

	if filter.Path != "" {
		query += " AND path = ?"
		args = append(args, string(filter.Path))
	}
	if filter.Tier != "" {
		query += " AND tier = ?"
		args = append(args, string(filter.Tier))
	}
	if filter.State != "" {
		query += " AND state = ?"
		args = append(args, filter.State)
	}
	if filter.RequiresReview != nil {
		query += " AND requires_review = ?"
		args = append(args, *filter.RequiresReview)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validations")
	}
	defer rows.Close()

	var records []model.ValidationRecord
	for rows.Next() {
		rec, err := scanValidationSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list validations")
}

func (s *SQLiteStore) EnqueueReview(ctx context.Context, recordID, reason string) (*model.ReviewEntry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, record_id, reason, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, recordID, reason, string(model.ReviewPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue review")
	}
	return &model.ReviewEntry{
		ID:        id,
		RecordID:  recordID,
		Reason:    reason,
		Status:    model.ReviewPending,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListReviewQueue(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewEntry, error) {
	query := `SELECT id, record_id, reason, status, created_at, resolved_at FROM review_queue`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review queue")
	}
	defer rows.Close()

	var entries []model.ReviewEntry
	for rows.Next() {
		var e model.ReviewEntry
		var st string
		var resolved sql.NullTime
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Reason, &st, &e.CreatedAt, &resolved); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review entry")
		}
		e.Status = model.ReviewStatus(st)
		if resolved.Valid {
			t := resolved.Time
			e.ResolvedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list review queue")
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, reviewID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(model.ReviewResolved), time.Now().UTC(), reviewID, string(model.ReviewPending),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve review")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: resolve review")
	}
	if n == 0 {
		return eris.Errorf("sqlite: review %s not found or already resolved", reviewID)
	}
	return nil
}

func (s *SQLiteStore) CountPendingReviews(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_queue WHERE status = ?`, string(model.ReviewPending),
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count pending reviews")
}

func (s *SQLiteStore) DashboardStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		PathCounts: make(map[string]int),
		TierCounts: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN requires_review THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN fraud_count > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(confidence_score), 0)
		FROM validated_providers`,
	).Scan(&stats.TotalValidated, &stats.NeedsReview, &stats.FraudDetected, &stats.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dashboard totals")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, tier, COUNT(*) FROM validated_providers GROUP BY path, tier`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dashboard grouping")
	}
	defer rows.Close()

	for rows.Next() {
		var path, tier string
		var n int
		if err := rows.Scan(&path, &tier, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dashboard row")
		}
		stats.PathCounts[path] += n
		stats.TierCounts[tier] += n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: dashboard grouping")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
