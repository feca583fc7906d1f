package abtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/metrics"
	"github.com/teilomillet/relcheck/registry"
)

var (
	errNoModels  = errors.New("A/B runner has no model registry")
	errNoStorage = errors.New("A/B runner has no storage")
)

// Classifier scores a bound prompt template against labeled data.
type Classifier interface {
	SetPromptTemplate(template string)
	Validate(ctx context.Context, data []dataset.Example) (metrics.Report, error)
}

// ModelLookup resolves registered models. A missing model is (nil, nil).
type ModelLookup interface {
	Get(ctx context.Context, name, version string) (*registry.ModelMetadata, error)
}

// Storage persists test configurations and results. Missing entries are
// returned as (nil, nil).
type Storage interface {
	SaveTestConfig(ctx context.Context, cfg Config) error
	GetTestConfig(ctx context.Context, testName string) (*Config, error)
	ListTestConfigs(ctx context.Context) ([]Config, error)
	SaveTestResult(ctx context.Context, result Result) error
	GetTestResult(ctx context.Context, testName string) (*Result, error)
}

// Runner splits test data between two prompt templates and compares them.
type Runner struct {
	classifier Classifier
	models     ModelLookup
	storage    Storage
	logger     logging.Logger
	now        func() time.Time
}

type RunnerOption func(*Runner)

func WithModels(m ModelLookup) RunnerOption {
	return func(r *Runner) {
		r.models = m
	}
}

func WithStorage(s Storage) RunnerOption {
	return func(r *Runner) {
		r.storage = s
	}
}

func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock overrides the source of completion timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner scoring templates with classifier.
func NewRunner(classifier Classifier, opts ...RunnerOption) *Runner {
	r := &Runner{
		classifier: classifier,
		logger:     logging.NewNopLogger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run routes each item of testData to a cohort by hashing
// "<testName>_<index>", scores templateA on cohort A and templateB on
// cohort B, and compares them by F1. Classifier errors are returned
// unchanged.
func (r *Runner) Run(ctx context.Context, testName string, testData []dataset.Example, templateA, templateB string, split int) (Result, error) {
	if r.classifier == nil {
		return Result{}, ErrMissingClassifier
	}
	splitter, err := NewSplitter(split, 0)
	if err != nil {
		return Result{}, err
	}

	var cohortA, cohortB []dataset.Example
	for i, item := range testData {
		if splitter.AssignGroup(fmt.Sprintf("%s_%d", testName, i)) == GroupA {
			cohortA = append(cohortA, item)
		} else {
			cohortB = append(cohortB, item)
		}
	}
	r.logger.Info("Split test data", "test", testName, "cohort_a", len(cohortA), "cohort_b", len(cohortB))

	r.classifier.SetPromptTemplate(templateA)
	perfA, err := r.classifier.Validate(ctx, cohortA)
	if err != nil {
		return Result{}, err
	}
	r.classifier.SetPromptTemplate(templateB)
	perfB, err := r.classifier.Validate(ctx, cohortB)
	if err != nil {
		return Result{}, err
	}

	return Result{
		TestName:                testName,
		ModelAPerformance:       perfA,
		ModelBPerformance:       perfB,
		SampleSizeA:             len(cohortA),
		SampleSizeB:             len(cohortB),
		StatisticalSignificance: Significance(perfA, perfB),
		Winner:                  DetermineWinner(perfA, perfB),
		CompletedAt:             r.now(),
	}, nil
}

// Setup validates cfg, checks that both models are registered and stores
// the configuration. A zero CreatedAt or Status is filled in.
func (r *Runner) Setup(ctx context.Context, cfg Config) error {
	if r.models == nil {
		return errNoModels
	}
	if r.storage == nil {
		return errNoStorage
	}
	if cfg.Status == "" {
		cfg.Status = StatusActive
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = r.now()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := r.template(ctx, "A", cfg.ModelA); err != nil {
		return err
	}
	if _, err := r.template(ctx, "B", cfg.ModelB); err != nil {
		return err
	}
	return r.storage.SaveTestConfig(ctx, cfg)
}

func (r *Runner) template(ctx context.Context, label, ref string) (string, error) {
	mr, err := ParseModelRef(ref)
	if err != nil {
		return "", err
	}
	m, err := r.models.Get(ctx, mr.Name, mr.Version)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("%w: model %s %s", ErrModelNotFound, label, ref)
	}
	return m.PromptTemplate, nil
}

// RunTest runs a stored test on testData, saves the result and marks the
// test completed.
func (r *Runner) RunTest(ctx context.Context, testName string, testData []dataset.Example) (Result, error) {
	if r.models == nil {
		return Result{}, errNoModels
	}
	if r.storage == nil {
		return Result{}, errNoStorage
	}
	cfg, err := r.storage.GetTestConfig(ctx, testName)
	if err != nil {
		return Result{}, err
	}
	if cfg == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrTestNotFound, testName)
	}
	templateA, err := r.template(ctx, "A", cfg.ModelA)
	if err != nil {
		return Result{}, err
	}
	templateB, err := r.template(ctx, "B", cfg.ModelB)
	if err != nil {
		return Result{}, err
	}

	result, err := r.Run(ctx, testName, testData, templateA, templateB, cfg.TrafficSplit)
	if err != nil {
		return Result{}, err
	}
	if err := r.storage.SaveTestResult(ctx, result); err != nil {
		return Result{}, fmt.Errorf("saving result of %s: %w", testName, err)
	}
	if err := r.storage.SaveTestConfig(ctx, cfg.WithStatus(StatusCompleted)); err != nil {
		return Result{}, fmt.Errorf("updating status of %s: %w", testName, err)
	}
	return result, nil
}

// Result returns the stored result of testName, or nil if it has not run.
func (r *Runner) Result(ctx context.Context, testName string) (*Result, error) {
	if r.storage == nil {
		return nil, errNoStorage
	}
	return r.storage.GetTestResult(ctx, testName)
}

func (r *Runner) List(ctx context.Context) ([]Config, error) {
	if r.storage == nil {
		return nil, errNoStorage
	}
	return r.storage.ListTestConfigs(ctx)
}

// Stop pauses testName and reports whether it exists.
func (r *Runner) Stop(ctx context.Context, testName string) (bool, error) {
	if r.storage == nil {
		return false, errNoStorage
	}
	cfg, err := r.storage.GetTestConfig(ctx, testName)
	if err != nil || cfg == nil {
		return false, err
	}
	if err := r.storage.SaveTestConfig(ctx, cfg.WithStatus(StatusPaused)); err != nil {
		return false, err
	}
	r.logger.Info("Stopped A/B test", "test", testName)
	return true, nil
}

// Active returns the tests whose status is active.
func (r *Runner) Active(ctx context.Context) ([]Config, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var active []Config
	for _, c := range all {
		if c.Status == StatusActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// Test returns the configuration and result of testName, or nil when no
// such test exists.
func (r *Runner) Test(ctx context.Context, testName string) (*Test, error) {
	if r.storage == nil {
		return nil, errNoStorage
	}
	cfg, err := r.storage.GetTestConfig(ctx, testName)
	if err != nil || cfg == nil {
		return nil, err
	}
	result, err := r.storage.GetTestResult(ctx, testName)
	if err != nil {
		return nil, err
	}
	return &Test{Config: *cfg, Result: result}, nil
}
