package monitor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/metrics"
)

type memStorage struct {
	mu      sync.Mutex
	records []Record
	rules   []Rule
	alerts  map[string]Alert
	order   []string
}

func newMemStorage() *memStorage {
	return &memStorage{alerts: map[string]Alert{}}
}

func (s *memStorage) SaveRecord(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *memStorage) Records(_ context.Context, model string, since time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.ModelName == model && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int { return a.Timestamp.Compare(b.Timestamp) })
	return out, nil
}

func (s *memStorage) LatestRecord(ctx context.Context, model string) (*Record, error) {
	records, _ := s.Records(ctx, model, time.Time{})
	if len(records) == 0 {
		return nil, nil
	}
	return &records[len(records)-1], nil
}

func (s *memStorage) SaveRule(_ context.Context, r Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	return nil
}

func (s *memStorage) Rules(_ context.Context, model string) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Rule
	for _, r := range s.rules {
		if r.ModelName == model {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStorage) SaveAlert(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.alerts[a.ID] = a
	return nil
}

func (s *memStorage) GetAlert(_ context.Context, id string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memStorage) ActiveAlerts(_ context.Context, model string) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, id := range s.order {
		if a := s.alerts[id]; a.ModelName == model && !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out, nil
}

// stepClock advances by step on every call.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

type fixedClassifier struct {
	report metrics.Report
	err    error
}

func (f fixedClassifier) Validate(context.Context, []dataset.Example) (metrics.Report, error) {
	return f.report, f.err
}

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func examples(n int) []dataset.Example {
	return make([]dataset.Example, n)
}

func TestRecordValidate(t *testing.T) {
	valid := Record{ModelName: "m", Accuracy: 1, ErrorRate: 0.5}
	assert.NoError(t, valid.Validate())

	for name, r := range map[string]Record{
		"accuracy":   {ModelName: "m", Accuracy: 1.1},
		"f1":         {ModelName: "m", F1: -0.1},
		"latency":    {ModelName: "m", LatencyMs: -1},
		"throughput": {ModelName: "m", ThroughputRPS: -1},
		"error rate": {ModelName: "m", ErrorRate: 2},
		"samples":    {ModelName: "m", SampleCount: -1},
		"name":       {},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, r.Validate())
		})
	}
}

func TestSeriesStatistics(t *testing.T) {
	s := Series{Metric: "accuracy", Records: []Record{{Accuracy: 0.8}, {Accuracy: 0.6}, {Accuracy: 0.7}}}
	stats := s.Statistics()
	assert.InDelta(t, 0.7, stats.Mean, 1e-12)
	assert.Equal(t, 0.6, stats.Min)
	assert.Equal(t, 0.8, stats.Max)
	assert.Equal(t, 3, stats.Count)

	assert.Equal(t, Statistics{}, Series{Metric: "accuracy"}.Statistics())
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"all", 0, false},
		{"", 0, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"-1h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeRange(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleCheck(t *testing.T) {
	tests := []struct {
		cond  Condition
		value float64
		want  bool
	}{
		{Below, 0.7, true},
		{Below, 0.8, false},
		{Above, 0.9, true},
		{Above, 0.8, false},
		{Equal, 0.8, true},
		{Equal, 0.8 + 1e-10, true},
		{Equal, 0.81, false},
		{NotEqual, 0.81, true},
		{NotEqual, 0.8, false},
	}
	for _, tt := range tests {
		r := Rule{Condition: tt.cond, Threshold: 0.8, Enabled: true}
		got, err := r.Check(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %v", tt.cond, tt.value)
	}

	disabled := Rule{Condition: Below, Threshold: 0.8}
	got, err := disabled.Check(0)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = Rule{Condition: "~", Enabled: true}.Check(0)
	assert.ErrorIs(t, err, ErrUnknownCondition)
}

func TestNewRule(t *testing.T) {
	r, err := NewRule("m", "accuracy", Below, 0.8, SeverityHigh, "Accuracy dropped")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.True(t, r.Enabled)

	_, err = NewRule("m", "accuracy", "<=", 0.8, SeverityHigh, "")
	assert.ErrorIs(t, err, ErrUnknownCondition)
	_, err = NewRule("m", "bogus", Below, 0.8, SeverityHigh, "")
	assert.ErrorIs(t, err, ErrUnknownMetric)
	_, err = NewRule("m", "accuracy", Below, 0.8, "urgent", "")
	assert.Error(t, err)
}

func TestCollectPerformance(t *testing.T) {
	storage := newMemStorage()
	clock := &stepClock{t: start, step: 2 * time.Second}
	c := NewCollector(storage, WithClock(clock.now))

	report := metrics.Report{Accuracy: 0.9, Precision: 0.8, Recall: 0.7, F1: 0.75}
	r, err := c.CollectPerformance(context.Background(), "m", "1.0.0", fixedClassifier{report: report}, examples(4))
	require.NoError(t, err)
	assert.Equal(t, report, r.Report())
	assert.Equal(t, 4, r.SampleCount)
	assert.InDelta(t, 2.0, r.ThroughputRPS, 1e-9)
	assert.InDelta(t, 500.0, r.LatencyMs, 1e-9)
	assert.Equal(t, start.Add(2*time.Second), r.Timestamp)
	assert.Len(t, storage.records, 1)

	boom := errors.New("timeout")
	_, err = c.CollectPerformance(context.Background(), "m", "1.0.0", fixedClassifier{err: boom}, examples(4))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, storage.records, 1)
}

func TestCollectLatency(t *testing.T) {
	storage := newMemStorage()
	c := NewCollector(storage, WithClock(func() time.Time { return start }))

	r, err := c.CollectLatency(context.Background(), "m", "1.0.0", []float64{100, 200, 300})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, r.LatencyMs, 1e-9)
	assert.InDelta(t, 5.0, r.ThroughputRPS, 1e-9)
	assert.Equal(t, 3, r.SampleCount)

	empty, err := c.CollectLatency(context.Background(), "m", "1.0.0", nil)
	require.NoError(t, err)
	assert.Zero(t, empty.LatencyMs)
	assert.Zero(t, empty.ThroughputRPS)
}

func TestSeriesTimeRange(t *testing.T) {
	storage := newMemStorage()
	ctx := context.Background()
	for i, acc := range []float64{0.5, 0.6, 0.9} {
		ts := start.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, storage.SaveRecord(ctx, Record{ModelName: "m", Timestamp: ts, Accuracy: acc}))
	}
	now := start.Add(2*24*time.Hour + time.Hour)
	c := NewCollector(storage, WithClock(func() time.Time { return now }))

	all, err := c.Series(ctx, "m", "accuracy", "all")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.6, 0.9}, all.Values())

	recent, err := c.Series(ctx, "m", "accuracy", "1d")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9}, recent.Values())

	_, err = c.Series(ctx, "m", "nope", "all")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestMonitorAlertsAndHealth(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	clock := func() time.Time { return start }
	logger := logging.NewMockLogger()
	collector := NewCollector(storage, WithClock(clock))
	m := NewMonitor(collector, storage, logger, WithClock(clock))

	health, err := m.Health(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, HealthUnknown, health.Status)

	alerts, err := m.CheckAlerts(ctx, "m")
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, err = collector.CollectPerformance(ctx, "m", "1.0.0", fixedClassifier{report: metrics.Report{Accuracy: 0.7, F1: 0.6}}, examples(10))
	require.NoError(t, err)

	low, _ := NewRule("m", "accuracy", Below, 0.8, SeverityHigh, "Accuracy dropped")
	ok, _ := NewRule("m", "f1", Above, 0.9, SeverityCritical, "Suspicious F1")
	require.NoError(t, m.AddRule(ctx, low))
	require.NoError(t, m.AddRule(ctx, ok))
	assert.Error(t, m.AddRule(ctx, Rule{ID: "x", ModelName: "m", Metric: "accuracy", Condition: "?", Severity: SeverityLow}))

	health, err = m.Health(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, health.Status)
	assert.Equal(t, 0.7, health.Accuracy)

	alerts, err = m.CheckAlerts(ctx, "m")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Accuracy dropped: accuracy = 0.700", alerts[0].Message)
	assert.Equal(t, low.ID, alerts[0].RuleID)
	assert.True(t, logger.HasMessage("Alert triggered"))

	health, err = m.Health(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, HealthWarning, health.Status)
	assert.Equal(t, 1, health.ActiveAlerts)

	acked, err := m.AcknowledgeAlert(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, acked)
	acked, err = m.AcknowledgeAlert(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, acked)

	active, err := m.ActiveAlerts(ctx, "m")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHealthCritical(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	m := NewMonitor(NewCollector(storage), storage, nil)
	require.NoError(t, storage.SaveRecord(ctx, Record{ModelName: "m", Timestamp: start}))
	require.NoError(t, storage.SaveAlert(ctx, Alert{ID: "1", ModelName: "m", Severity: SeverityLow}))
	require.NoError(t, storage.SaveAlert(ctx, Alert{ID: "2", ModelName: "m", Severity: SeverityCritical}))

	health, err := m.Health(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, HealthCritical, health.Status)
	assert.Equal(t, 2, health.ActiveAlerts)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	clock := func() time.Time { return start }
	m := NewMonitor(NewCollector(storage, WithClock(clock)), storage, nil)
	for _, acc := range []float64{0.8, 0.6} {
		require.NoError(t, storage.SaveRecord(ctx, Record{ModelName: "m", Timestamp: start, Accuracy: acc}))
	}
	summary, err := m.Summary(ctx, "m", "all")
	require.NoError(t, err)
	assert.Equal(t, "Performance Summary for m (all):\nAccuracy: mean=0.700, min=0.600, max=0.800\nSample count: 2", summary)
}
