package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/health-atlas/atlas-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRedRate       AlertType = "red_rate"
	AlertReviewBacklog AlertType = "review_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// sends alerts via webhook when they are breached.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitor config.
func NewAlerter(cfg config.MonitorConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Rate-based checks need a minimum sample size before they fire.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minSample := a.cfg.MinSampleForRates
	if minSample <= 0 {
		minSample = 10
	}
	redThreshold := a.cfg.RedRateThreshold
	if redThreshold <= 0 {
		redThreshold = 0.25
	}
	backlogMax := a.cfg.ReviewBacklogMax
	if backlogMax <= 0 {
		backlogMax = 50
	}

	if snap.TotalValidated >= minSample && snap.RedRate > redThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRedRate,
			Severity: "high",
			Message: fmt.Sprintf("RED routing rate %.1f%% exceeds threshold %.1f%% (%d of %d records)",
				snap.RedRate*100, redThreshold*100,
				snap.PathCounts["RED"], snap.TotalValidated),
			Details: map[string]any{
				"red_rate":  snap.RedRate,
				"threshold": redThreshold,
				"total":     snap.TotalValidated,
			},
			Timestamp: now,
		})
	}

	if snap.PendingReviews > backlogMax {
		alerts = append(alerts, Alert{
			Type:     AlertReviewBacklog,
			Severity: "medium",
			Message: fmt.Sprintf("review queue backlog %d exceeds limit %d",
				snap.PendingReviews, backlogMax),
			Details: map[string]any{
				"pending": snap.PendingReviews,
				"limit":   backlogMax,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Send posts alerts to the configured webhook. Without a webhook URL the
// alerts are logged and dropped.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("alert (no webhook configured)",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message))
		}
		return nil
	}

	payload, err := json.Marshal(map[string]any{"alerts": alerts})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook returned %d", resp.StatusCode)
	}
	return nil
}
