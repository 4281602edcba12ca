// Package monitoring checks finished audit reports against alert thresholds
// and delivers alerts to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/audit"
	"github.com/sells-group/geo-audit/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate AlertType = "job_failure_rate"
	AlertFallbackRate   AlertType = "fallback_rate"
	AlertLowVisibility  AlertType = "low_visibility"
	AlertCostOverrun    AlertType = "cost_overrun"
)

// minJobsForRate is the number of jobs a surface needs before its failure
// and fallback rates are considered.
const minJobsForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates an audit report against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks the report against thresholds and returns any alerts.
// Surfaces are checked in name order.
func (a *Alerter) Evaluate(report *audit.Report) []Alert {
	if report == nil {
		return nil
	}
	var alerts []Alert
	now := a.now()

	names := make([]string, 0, len(report.Surfaces))
	for name := range report.Surfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sum := report.Surfaces[name]
		if sum.Jobs < minJobsForRate {
			continue
		}

		failRate := float64(sum.Failed) / float64(sum.Jobs)
		if failRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertJobFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d jobs)",
					name, failRate*100, a.cfg.FailureRateThreshold*100, sum.Failed, sum.Jobs,
				),
				Details: map[string]any{
					"surface":      name,
					"failure_rate": failRate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       sum.Failed,
					"jobs":         sum.Jobs,
				},
				Timestamp: now,
			})
		}

		fallbackRate := float64(sum.Fallbacks) / float64(sum.Jobs)
		if a.cfg.FallbackRateThreshold > 0 && fallbackRate > a.cfg.FallbackRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertFallbackRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%s fallback rate %.1f%% exceeds threshold %.1f%% (%d fallbacks / %d jobs)",
					name, fallbackRate*100, a.cfg.FallbackRateThreshold*100, sum.Fallbacks, sum.Jobs,
				),
				Details: map[string]any{
					"surface":       name,
					"fallback_rate": fallbackRate,
					"threshold":     a.cfg.FallbackRateThreshold,
					"fallbacks":     sum.Fallbacks,
					"jobs":          sum.Jobs,
				},
				Timestamp: now,
			})
		}
	}

	// Visibility is judged on the whole run.
	scored := report.Overall.Jobs - report.Overall.Failed
	if a.cfg.MinVisibilityPct > 0 && scored > 0 && report.Overall.VisibilityPct < a.cfg.MinVisibilityPct {
		alerts = append(alerts, Alert{
			Type:     AlertLowVisibility,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%s visible in %.1f%% of answers, below %.1f%%",
				report.Brand.Name, report.Overall.VisibilityPct, a.cfg.MinVisibilityPct,
			),
			Details: map[string]any{
				"brand":          report.Brand.Name,
				"visibility_pct": report.Overall.VisibilityPct,
				"threshold":      a.cfg.MinVisibilityPct,
				"overall_score":  report.Overall.OverallScore,
			},
			Timestamp: now,
		})
	}

	// Check cost overrun.
	if a.cfg.CostThresholdUSD > 0 && report.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"API cost $%.2f exceeds threshold $%.2f",
				report.CostUSD, a.cfg.CostThresholdUSD,
			),
			Details: map[string]any{
				"cost_usd":      report.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"jobs":          report.Overall.Jobs,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
