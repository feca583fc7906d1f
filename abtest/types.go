package abtest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teilomillet/relcheck/internal/validation"
	"github.com/teilomillet/relcheck/metrics"
)

var (
	// ErrInvalidModelRef is returned for a model reference not of the form name:version.
	ErrInvalidModelRef = errors.New("model reference must be name:version")
	// ErrTestNotFound is returned when no configuration exists for a test name.
	ErrTestNotFound = errors.New("A/B test not found")
	// ErrModelNotFound is returned when a referenced model is not registered.
	ErrModelNotFound = errors.New("model not found")
	// ErrMissingClassifier is returned when a runner without a classifier is asked to score templates.
	ErrMissingClassifier = errors.New("A/B runner has no classifier")
)

// DefaultSignificanceThreshold is the cut-off used by IsSignificant callers
// that have no threshold of their own.
const DefaultSignificanceThreshold = 0.05

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// ModelRef names a registered model version.
type ModelRef struct {
	Name    string
	Version string
}

// ParseModelRef parses "name:version".
func ParseModelRef(s string) (ModelRef, error) {
	name, version, ok := strings.Cut(s, ":")
	if !ok || name == "" || version == "" || strings.Contains(version, ":") {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrInvalidModelRef, s)
	}
	return ModelRef{Name: name, Version: version}, nil
}

func (r ModelRef) String() string {
	return r.Name + ":" + r.Version
}

// Config describes a stored A/B test.
type Config struct {
	TestName     string    `json:"test_name" validate:"required,excludesall=/\\"`
	ModelA       string    `json:"model_a" validate:"required"`
	ModelB       string    `json:"model_b" validate:"required"`
	TrafficSplit int       `json:"traffic_split" validate:"gte=0,lte=100"`
	TestDataPath string    `json:"test_data_path"`
	CreatedAt    time.Time `json:"created_at"`
	Status       Status    `json:"status" validate:"oneof=active completed paused"`
}

// Validate checks the fields and both model references.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid A/B test config: %s", validation.Describe(err))
	}
	if _, err := ParseModelRef(c.ModelA); err != nil {
		return err
	}
	if _, err := ParseModelRef(c.ModelB); err != nil {
		return err
	}
	return nil
}

// WithStatus returns a copy of c with its status replaced.
func (c Config) WithStatus(s Status) Config {
	c.Status = s
	return c
}

// Winner is the outcome of comparing two cohorts.
type Winner string

const (
	WinnerModelA Winner = "model_a"
	WinnerModelB Winner = "model_b"
	WinnerNone   Winner = "no_significant_difference"
)

// DetermineWinner compares cohort F1 scores; equal scores have no winner.
func DetermineWinner(a, b metrics.Report) Winner {
	switch {
	case a.F1 > b.F1:
		return WinnerModelA
	case b.F1 > a.F1:
		return WinnerModelB
	default:
		return WinnerNone
	}
}

// Significance is min(0.05, |f1_a - f1_b|). It is a stand-in figure,
// not a p-value.
func Significance(a, b metrics.Report) float64 {
	return math.Min(0.05, math.Abs(a.F1-b.F1))
}

// Result is the outcome of one A/B run.
type Result struct {
	TestName                string         `json:"test_name"`
	ModelAPerformance       metrics.Report `json:"model_a_performance"`
	ModelBPerformance       metrics.Report `json:"model_b_performance"`
	SampleSizeA             int            `json:"sample_size_a"`
	SampleSizeB             int            `json:"sample_size_b"`
	StatisticalSignificance float64        `json:"statistical_significance"`
	Winner                  Winner         `json:"winner"`
	CompletedAt             time.Time      `json:"completed_at"`
}

// Test pairs a configuration with its result, if any.
type Test struct {
	Config Config
	Result *Result
}

// IsSignificant reports whether the result's significance figure is
// below threshold. A test without a result is never significant.
func (t Test) IsSignificant(threshold float64) bool {
	if t.Result == nil {
		return false
	}
	return t.Result.StatisticalSignificance < threshold
}

func (t Test) Summary() string {
	if t.Result == nil {
		return fmt.Sprintf("A/B Test '%s': No results available", t.Config.TestName)
	}
	r := t.Result
	return fmt.Sprintf(`A/B Test Summary: %s
Model A (%s): F1 = %.3f (n=%d)
Model B (%s): F1 = %.3f (n=%d)
Winner: %s
Statistical Significance: %.3f
Significant: %t`,
		t.Config.TestName,
		t.Config.ModelA, r.ModelAPerformance.F1, r.SampleSizeA,
		t.Config.ModelB, r.ModelBPerformance.F1, r.SampleSizeB,
		r.Winner,
		r.StatisticalSignificance,
		t.IsSignificant(DefaultSignificanceThreshold))
}
