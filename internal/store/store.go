// Package store persists validation outcomes and the human review queue.
// Two backends exist: PostgreSQL via pgxpool for deployments and SQLite for
// single-machine use.
package store

import (
	"context"

	"github.com/health-atlas/atlas-cli/internal/model"
)

// RecordFilter specifies criteria for listing validation records.
type RecordFilter struct {
	Path           model.Path `json:"path,omitempty"`
	Tier           model.Tier `json:"tier,omitempty"`
	State          string     `json:"state,omitempty"`
	RequiresReview *bool      `json:"requires_review,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
}

// Stats is the aggregate shape behind the dashboard endpoint.
type Stats struct {
	TotalValidated int            `json:"total_validated"`
	NeedsReview    int            `json:"needs_review"`
	FraudDetected  int            `json:"fraud_detected"`
	AvgConfidence  float64        `json:"avg_confidence"`
	PathCounts     map[string]int `json:"path_counts"`
	TierCounts     map[string]int `json:"tier_counts"`
}

// Store defines the persistence interface for the validation pipeline.
type Store interface {
	// Validation records
	SaveValidation(ctx context.Context, out model.ValidationOutcome) (*model.ValidationRecord, error)
	GetValidation(ctx context.Context, id string) (*model.ValidationRecord, error)
	ListValidations(ctx context.Context, filter RecordFilter) ([]model.ValidationRecord, error)

	// Review queue
	EnqueueReview(ctx context.Context, recordID, reason string) (*model.ReviewEntry, error)
	ListReviewQueue(ctx context.Context, status model.ReviewStatus, limit int) ([]model.ReviewEntry, error)
	ResolveReview(ctx context.Context, reviewID string) error
	CountPendingReviews(ctx context.Context) (int, error)

	// Dashboard
	DashboardStats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
