package monitor

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/metrics"
)

// Classifier is the scoring capability measured by the collector.
type Classifier interface {
	Validate(ctx context.Context, data []dataset.Example) (metrics.Report, error)
}

// Storage persists performance records, alert rules and alerts. Missing
// single items are returned as (nil, nil).
type Storage interface {
	SaveRecord(ctx context.Context, r Record) error
	// Records returns the records of model at or after since, oldest
	// first. A zero since returns all of them.
	Records(ctx context.Context, model string, since time.Time) ([]Record, error)
	LatestRecord(ctx context.Context, model string) (*Record, error)
	SaveRule(ctx context.Context, r Rule) error
	Rules(ctx context.Context, model string) ([]Rule, error)
	SaveAlert(ctx context.Context, a Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ActiveAlerts(ctx context.Context, model string) ([]Alert, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps and timing.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Collector measures models and stores the results.
type Collector struct {
	storage Storage
	now     func() time.Time
}

func NewCollector(storage Storage, opts ...Option) *Collector {
	o := buildOptions(opts)
	return &Collector{storage: storage, now: o.now}
}

// CollectPerformance validates classifier on data, timing the call, and
// stores the resulting record.
func (c *Collector) CollectPerformance(ctx context.Context, model, version string, classifier Classifier, data []dataset.Example) (Record, error) {
	start := c.now()
	report, err := classifier.Validate(ctx, data)
	if err != nil {
		return Record{}, err
	}
	end := c.now()
	elapsed := end.Sub(start)

	r := Record{
		ModelName:    model,
		ModelVersion: version,
		Timestamp:    end,
		Accuracy:     report.Accuracy,
		Precision:    report.Precision,
		Recall:       report.Recall,
		F1:           report.F1,
		SampleCount:  len(data),
	}
	if elapsed > 0 {
		r.ThroughputRPS = float64(len(data)) / elapsed.Seconds()
	}
	if len(data) > 0 {
		r.LatencyMs = float64(elapsed.Microseconds()) / 1000 / float64(len(data))
	}
	return r, c.save(ctx, r)
}

// CollectLatency stores a latency-only record averaging latencies (ms).
func (c *Collector) CollectLatency(ctx context.Context, model, version string, latencies []float64) (Record, error) {
	r := Record{
		ModelName:    model,
		ModelVersion: version,
		Timestamp:    c.now(),
		SampleCount:  len(latencies),
	}
	if len(latencies) > 0 {
		r.LatencyMs = stat.Mean(latencies, nil)
	}
	if r.LatencyMs > 0 {
		r.ThroughputRPS = 1000 / r.LatencyMs
	}
	return r, c.save(ctx, r)
}

func (c *Collector) save(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return c.storage.SaveRecord(ctx, r)
}

// Series returns the records of model inside timeRange for metric.
func (c *Collector) Series(ctx context.Context, model, metric, timeRange string) (Series, error) {
	if err := checkMetric(metric); err != nil {
		return Series{}, err
	}
	since, err := Since(timeRange, c.now())
	if err != nil {
		return Series{}, err
	}
	records, err := c.storage.Records(ctx, model, since)
	if err != nil {
		return Series{}, err
	}
	return Series{ModelName: model, Metric: metric, TimeRange: timeRange, Records: records}, nil
}
