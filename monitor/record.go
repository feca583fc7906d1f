// Package monitor records classifier performance over time and raises
// alerts when a metric crosses a configured threshold.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teilomillet/relcheck/internal/validation"
	"github.com/teilomillet/relcheck/metrics"
)

// ErrUnknownMetric is returned for a metric name a Record does not carry.
var ErrUnknownMetric = errors.New("unknown metric")

// Record is one performance measurement of a model version.
type Record struct {
	ModelName     string    `json:"model_name" validate:"required"`
	ModelVersion  string    `json:"model_version"`
	Timestamp     time.Time `json:"timestamp"`
	Accuracy      float64   `json:"accuracy" validate:"gte=0,lte=1"`
	Precision     float64   `json:"precision" validate:"gte=0,lte=1"`
	Recall        float64   `json:"recall" validate:"gte=0,lte=1"`
	F1            float64   `json:"f1" validate:"gte=0,lte=1"`
	LatencyMs     float64   `json:"latency_ms" validate:"gte=0"`
	ThroughputRPS float64   `json:"throughput_rps" validate:"gte=0"`
	ErrorRate     float64   `json:"error_rate" validate:"gte=0,lte=1"`
	SampleCount   int       `json:"sample_count" validate:"gte=0"`
}

func (r Record) Validate() error {
	if err := validation.Struct(r); err != nil {
		return fmt.Errorf("invalid performance record: %s", validation.Describe(err))
	}
	return nil
}

// Report returns the classification scores of the record.
func (r Record) Report() metrics.Report {
	return metrics.Report{Accuracy: r.Accuracy, Precision: r.Precision, Recall: r.Recall, F1: r.F1}
}

// Metric returns the named value, using the JSON field names.
func (r Record) Metric(name string) (float64, bool) {
	switch name {
	case "accuracy":
		return r.Accuracy, true
	case "precision":
		return r.Precision, true
	case "recall":
		return r.Recall, true
	case "f1":
		return r.F1, true
	case "latency_ms":
		return r.LatencyMs, true
	case "throughput_rps":
		return r.ThroughputRPS, true
	case "error_rate":
		return r.ErrorRate, true
	case "sample_count":
		return float64(r.SampleCount), true
	default:
		return 0, false
	}
}

// Metrics lists the names accepted by Record.Metric.
func Metrics() []string {
	return []string{"accuracy", "precision", "recall", "f1", "latency_ms", "throughput_rps", "error_rate", "sample_count"}
}

func checkMetric(name string) error {
	if _, ok := (Record{}).Metric(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return nil
}

// Series is the history of one metric of one model.
type Series struct {
	ModelName string
	Metric    string
	TimeRange string
	Records   []Record
}

// Values returns the metric's value in each record, in record order.
func (s Series) Values() []float64 {
	values := make([]float64, 0, len(s.Records))
	for _, r := range s.Records {
		if v, ok := r.Metric(s.Metric); ok {
			values = append(values, v)
		}
	}
	return values
}

type Statistics struct {
	Mean  float64
	Min   float64
	Max   float64
	Count int
}

// Statistics summarises Values. An empty series yields all zeros.
func (s Series) Statistics() Statistics {
	values := s.Values()
	if len(values) == 0 {
		return Statistics{}
	}
	return Statistics{
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Count: len(values),
	}
}

// ParseTimeRange converts "all" (or "") to zero and anything else to a
// duration. A trailing "d" counts days.
func ParseTimeRange(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid time range %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid time range %q", s)
	}
	return d, nil
}

// Since returns the earliest timestamp inside timeRange ending at now.
// The zero time means no lower bound.
func Since(timeRange string, now time.Time) (time.Time, error) {
	d, err := ParseTimeRange(timeRange)
	if err != nil || d == 0 {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
