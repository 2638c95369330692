// Package monitoring gathers aggregate validation health metrics and raises
// webhook alerts when policy thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/health-atlas/atlas-cli/internal/model"
	"github.com/health-atlas/atlas-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of validation health.
type MetricsSnapshot struct {
	TotalValidated int     `json:"total_validated"`
	NeedsReview    int     `json:"needs_review"`
	FraudDetected  int     `json:"fraud_detected"`
	AvgConfidence  float64 `json:"avg_confidence"`

	PathCounts map[string]int `json:"path_counts"`
	TierCounts map[string]int `json:"tier_counts"`

	PendingReviews int     `json:"pending_reviews"`
	RedRate        float64 `json:"red_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of validation metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	stats, err := c.store.DashboardStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: dashboard stats")
	}
	pending, err := c.store.CountPendingReviews(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count pending reviews")
	}

	snap := &MetricsSnapshot{
		TotalValidated: stats.TotalValidated,
		NeedsReview:    stats.NeedsReview,
		FraudDetected:  stats.FraudDetected,
		AvgConfidence:  stats.AvgConfidence,
		PathCounts:     stats.PathCounts,
		TierCounts:     stats.TierCounts,
		PendingReviews: pending,
		CollectedAt:    time.Now().UTC(),
	}
	if snap.TotalValidated > 0 {
		snap.RedRate = float64(snap.PathCounts[string(model.PathRed)]) / float64(snap.TotalValidated)
	}
	return snap, nil
}
