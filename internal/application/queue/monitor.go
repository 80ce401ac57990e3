package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Alert thresholds defining the pipeline's normal operating envelope.
const (
	DeadLetterWarnThreshold   = 10 // dead-letter items in the last 24h
	ErrorBatchWarnThreshold   = 20 // error batches in the last 24h
	StalledCriticalThreshold  = 5  // processing batches older than 30m
	RateLimitWarnPercent      = 20 // remaining% below this warns
	StalledBatchAge           = 30 * time.Minute
	MonitorLookback           = 24 * time.Hour
)

// Alert levels.
const (
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// Alert is one threshold breach in a health report.
type Alert struct {
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
	API       string  `json:"api,omitempty"`
	Endpoint  string  `json:"endpoint,omitempty"`
}

// RateLimitMetric is the monitor's view of one tracked (api, endpoint) pair.
type RateLimitMetric struct {
	API              string    `json:"api"`
	Endpoint         string    `json:"endpoint"`
	Remaining        int       `json:"remaining"`
	Limit            int       `json:"limit"`
	RemainingPercent float64   `json:"remaining_percent"`
	ResetAt          time.Time `json:"reset_at"`
}

// QueueDepthMetric is the per-type status breakdown in a health report.
type QueueDepthMetric struct {
	BatchType     string `json:"batch_type"`
	Pending       int    `json:"pending"`
	Processing    int    `json:"processing"`
	Completed     int    `json:"completed"`
	Failed        int    `json:"failed"`
	PendingOver1h int    `json:"pending_over_1h"`
}

// HealthMetrics aggregates the sampled store state.
type HealthMetrics struct {
	DeadLetterItems24h int                `json:"dead_letter_items_24h"`
	ErrorBatches24h    int                `json:"error_batches_24h"`
	StalledBatches     int                `json:"stalled_batches"`
	QueueDepths        []QueueDepthMetric `json:"queue_depths"`
	RateLimits         []RateLimitMetric  `json:"rate_limits"`
}

// Action records an auto-remediation step taken during a monitor run.
type Action struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// HealthReport is the monitor's output.
type HealthReport struct {
	Timestamp time.Time     `json:"timestamp"`
	Alerts    []Alert       `json:"alerts"`
	Metrics   HealthMetrics `json:"metrics"`
	Actions   []Action      `json:"actions,omitempty"`
}

// SendResult reports whether the alert sink accepted the report.
type SendResult struct {
	Sent      bool       `json:"sent"`
	Count     int        `json:"count,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// AlertSink fans a health report out to an alerting destination.
type AlertSink interface {
	Send(ctx context.Context, report *HealthReport) SendResult
}

// LogAlertSink is the default sink: alerts are logged, nothing leaves the
// process.
type LogAlertSink struct{}

func (LogAlertSink) Send(ctx context.Context, report *HealthReport) SendResult {
	if len(report.Alerts) == 0 {
		return SendResult{Sent: false, Reason: "no alerts"}
	}
	for _, alert := range report.Alerts {
		slog.WarnContext(ctx, "health alert",
			"level", alert.Level,
			"metric", alert.Metric,
			"message", alert.Message)
	}
	now := report.Timestamp
	return SendResult{Sent: true, Count: len(report.Alerts), Timestamp: &now}
}

// Monitor samples health metrics, raises threshold alerts, and auto-remediates
// critical conditions by resetting stranded leases.
type Monitor struct {
	store Store
	sink  AlertSink
	now   func() time.Time
}

// NewMonitor creates a monitor. A nil sink falls back to log-only.
func NewMonitor(store Store, sink AlertSink) *Monitor {
	if sink == nil {
		sink = LogAlertSink{}
	}
	return &Monitor{
		store: store,
		sink:  sink,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce assembles a health report, sends alerts, and performs
// auto-remediation when a critical condition coincides with stalled batches.
func (m *Monitor) RunOnce(ctx context.Context) (*HealthReport, SendResult, error) {
	now := m.now()
	report := &HealthReport{Timestamp: now, Alerts: []Alert{}}

	metrics, err := m.collect(ctx, now)
	if err != nil {
		return nil, SendResult{}, err
	}
	report.Metrics = metrics

	if metrics.DeadLetterItems24h > DeadLetterWarnThreshold {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertWarning,
			Message:   fmt.Sprintf("%d dead letter items in the last 24h", metrics.DeadLetterItems24h),
			Metric:    "dead_letter_items_24h",
			Threshold: DeadLetterWarnThreshold,
		})
	}
	if metrics.ErrorBatches24h > ErrorBatchWarnThreshold {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertWarning,
			Message:   fmt.Sprintf("%d error batches in the last 24h", metrics.ErrorBatches24h),
			Metric:    "error_batches_24h",
			Threshold: ErrorBatchWarnThreshold,
		})
	}
	if metrics.StalledBatches > StalledCriticalThreshold {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertCritical,
			Message:   fmt.Sprintf("%d batches stuck processing for over %s", metrics.StalledBatches, StalledBatchAge),
			Metric:    "stalled_batches",
			Threshold: StalledCriticalThreshold,
		})
	}
	for _, rl := range metrics.RateLimits {
		if rl.RemainingPercent < RateLimitWarnPercent {
			report.Alerts = append(report.Alerts, Alert{
				Level:     AlertWarning,
				Message:   fmt.Sprintf("%s %s rate limit at %.1f%% remaining", rl.API, rl.Endpoint, rl.RemainingPercent),
				Metric:    "rate_limit_remaining_percent",
				Threshold: RateLimitWarnPercent,
				API:       rl.API,
				Endpoint:  rl.Endpoint,
			})
		}
	}

	m.remediate(ctx, report)

	sent := m.sink.Send(ctx, report)
	return report, sent, nil
}

// collect samples the store. Every metric comes from a count primitive;
// nothing is derived from slice lengths.
func (m *Monitor) collect(ctx context.Context, now time.Time) (HealthMetrics, error) {
	var metrics HealthMetrics

	dlq, err := m.store.CountDeadLettersSince(ctx, now.Add(-MonitorLookback))
	if err != nil {
		return metrics, fmt.Errorf("failed to count recent dead letter items: %w", err)
	}
	metrics.DeadLetterItems24h = dlq

	errored, err := m.store.CountErrorBatchesSince(ctx, now.Add(-MonitorLookback))
	if err != nil {
		return metrics, fmt.Errorf("failed to count recent error batches: %w", err)
	}
	metrics.ErrorBatches24h = errored

	stalled, err := m.store.CountStalled(ctx, StalledBatchAge)
	if err != nil {
		return metrics, fmt.Errorf("failed to count stalled batches: %w", err)
	}
	metrics.StalledBatches = stalled

	depths, err := m.store.QueueDepths(ctx)
	if err != nil {
		return metrics, fmt.Errorf("failed to read queue depths: %w", err)
	}
	metrics.QueueDepths = make([]QueueDepthMetric, 0, len(depths))
	for _, d := range depths {
		metrics.QueueDepths = append(metrics.QueueDepths, QueueDepthMetric{
			BatchType:     d.BatchType,
			Pending:       d.Pending,
			Processing:    d.Processing,
			Completed:     d.Completed,
			Failed:        d.Failed,
			PendingOver1h: d.PendingOver1h,
		})
	}

	limits, err := m.store.ListRateLimits(ctx)
	if err != nil {
		return metrics, fmt.Errorf("failed to list rate limits: %w", err)
	}
	metrics.RateLimits = make([]RateLimitMetric, 0, len(limits))
	for _, rl := range limits {
		metrics.RateLimits = append(metrics.RateLimits, RateLimitMetric{
			API:              rl.APIName,
			Endpoint:         rl.Endpoint,
			Remaining:        rl.RequestsRemaining,
			Limit:            rl.RequestsLimit,
			RemainingPercent: rl.RemainingPercent(),
			ResetAt:          rl.ResetAt,
		})
	}

	return metrics, nil
}

// remediate resets stranded leases when a critical alert coincides with
// stalled batches, and records the action on the report.
func (m *Monitor) remediate(ctx context.Context, report *HealthReport) {
	critical := false
	for _, alert := range report.Alerts {
		if alert.Level == AlertCritical {
			critical = true
			break
		}
	}
	if !critical || report.Metrics.StalledBatches == 0 {
		return
	}

	reset, err := m.store.ResetExpired(ctx, StalledBatchAge)
	if err != nil {
		slog.ErrorContext(ctx, "auto-remediation failed", "error", err)
		return
	}
	report.Actions = append(report.Actions, Action{Name: "reset_stalled_batches", Count: reset})
	slog.InfoContext(ctx, "auto-remediation reset stalled batches", "count", reset)
}
