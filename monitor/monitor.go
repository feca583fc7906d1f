package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/teilomillet/relcheck/internal/logging"
)

type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Health is the overall state of a model.
type Health struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	LastUpdated  time.Time    `json:"last_updated,omitempty"`
	Accuracy     float64      `json:"accuracy"`
	LatencyMs    float64      `json:"latency_ms"`
	ActiveAlerts int          `json:"active_alerts"`
}

// Monitor evaluates alert rules against the latest performance records.
type Monitor struct {
	collector *Collector
	storage   Storage
	logger    logging.Logger
	now       func() time.Time
}

func NewMonitor(collector *Collector, storage Storage, logger logging.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	o := buildOptions(opts)
	return &Monitor{collector: collector, storage: storage, logger: logger, now: o.now}
}

func (m *Monitor) AddRule(ctx context.Context, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return m.storage.SaveRule(ctx, rule)
}

// CheckAlerts evaluates every rule of model against its latest record and
// stores an alert for each rule that fires.
func (m *Monitor) CheckAlerts(ctx context.Context, model string) ([]Alert, error) {
	latest, err := m.storage.LatestRecord(ctx, model)
	if err != nil || latest == nil {
		return nil, err
	}
	rules, err := m.storage.Rules(ctx, model)
	if err != nil {
		return nil, err
	}

	var triggered []Alert
	for _, rule := range rules {
		value, ok := latest.Metric(rule.Metric)
		if !ok {
			continue
		}
		fire, err := rule.Check(value)
		if err != nil {
			return triggered, err
		}
		if !fire {
			continue
		}
		alert := newAlert(rule, value, m.now())
		if err := m.storage.SaveAlert(ctx, alert); err != nil {
			return triggered, err
		}
		m.logger.Warn("Alert triggered", "model", model, "severity", alert.Severity, "message", alert.Message)
		triggered = append(triggered, alert)
	}
	return triggered, nil
}

// Summary describes the accuracy of model over timeRange.
func (m *Monitor) Summary(ctx context.Context, model, timeRange string) (string, error) {
	series, err := m.collector.Series(ctx, model, "accuracy", timeRange)
	if err != nil {
		return "", err
	}
	s := series.Statistics()
	return fmt.Sprintf(`Performance Summary for %s (%s):
Accuracy: mean=%.3f, min=%.3f, max=%.3f
Sample count: %d`, model, timeRange, s.Mean, s.Min, s.Max, s.Count), nil
}

// ActiveAlerts returns the unacknowledged alerts of model.
func (m *Monitor) ActiveAlerts(ctx context.Context, model string) ([]Alert, error) {
	return m.storage.ActiveAlerts(ctx, model)
}

// AcknowledgeAlert marks the alert acknowledged and reports whether it
// exists.
func (m *Monitor) AcknowledgeAlert(ctx context.Context, id string) (bool, error) {
	alert, err := m.storage.GetAlert(ctx, id)
	if err != nil || alert == nil {
		return false, err
	}
	if err := m.storage.SaveAlert(ctx, alert.Acknowledge()); err != nil {
		return false, err
	}
	return true, nil
}

// Health reports critical if any active alert is critical, warning if
// any alert is active and healthy otherwise.
func (m *Monitor) Health(ctx context.Context, model string) (Health, error) {
	latest, err := m.storage.LatestRecord(ctx, model)
	if err != nil {
		return Health{}, err
	}
	if latest == nil {
		return Health{Status: HealthUnknown, Message: "No performance data available"}, nil
	}
	alerts, err := m.ActiveAlerts(ctx, model)
	if err != nil {
		return Health{}, err
	}

	status := HealthHealthy
	for _, a := range alerts {
		status = HealthWarning
		if a.Severity == SeverityCritical {
			status = HealthCritical
			break
		}
	}
	return Health{
		Status:       status,
		LastUpdated:  latest.Timestamp,
		Accuracy:     latest.Accuracy,
		LatencyMs:    latest.LatencyMs,
		ActiveAlerts: len(alerts),
	}, nil
}
