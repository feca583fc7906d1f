// Package assess runs labeled classification cases against one or more
// language model providers inside Go tests.
package assess

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/teilomillet/relcheck/classifier"
	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/llm"
)

// Constants for default values
const (
	DefaultTestTimeout  = 30 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// TestProvider is one provider and model to assess.
type TestProvider struct {
	Name    string
	Model   string
	BaseURL string
}

// ValidationFunc checks the prediction made for a case.
type ValidationFunc func(p classifier.Prediction) error

// TestCase is one text with the checks its prediction must pass.
type TestCase struct {
	Name        string
	Input       string
	Timeout     time.Duration
	Validations []ValidationFunc
}

// WithTimeout bounds the classification call of the case.
func (tc *TestCase) WithTimeout(timeout time.Duration) *TestCase {
	tc.Timeout = timeout
	return tc
}

// Validate adds a check.
func (tc *TestCase) Validate(fn ValidationFunc) *TestCase {
	tc.Validations = append(tc.Validations, fn)
	return tc
}

// ExpectLabel adds a check on the predicted label.
func (tc *TestCase) ExpectLabel(label string) *TestCase {
	return tc.Validate(ExpectLabel(label))
}

// TestMetrics tracks per-provider timings and failures.
type TestMetrics struct {
	ResponseTimes map[string][]time.Duration
	Errors        map[string][]error
	Correct       map[string]int
	Total         map[string]int
}

// TestRunner manages case execution across providers.
type TestRunner struct {
	t         *testing.T
	providers []TestProvider
	cases     []*TestCase
	config    *config.Config
	template  string
	limiter   *rate.Limiter
	metrics   *TestMetrics
	mu        sync.Mutex
}

// NewTest creates a runner using the default configuration.
func NewTest(t *testing.T) *TestRunner {
	t.Helper()
	return &TestRunner{
		t:       t,
		config:  config.NewConfig(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		metrics: &TestMetrics{
			ResponseTimes: make(map[string][]time.Duration),
			Errors:        make(map[string][]error),
			Correct:       make(map[string]int),
			Total:         make(map[string]int),
		},
	}
}

// WithProvider adds a provider to assess. An empty baseURL keeps the
// configured one.
func (tr *TestRunner) WithProvider(name, model, baseURL string) *TestRunner {
	tr.providers = append(tr.providers, TestProvider{Name: name, Model: model, BaseURL: baseURL})
	return tr
}

// WithConfig replaces the base configuration applied to every provider.
func (tr *TestRunner) WithConfig(cfg *config.Config) *TestRunner {
	tr.config = cfg
	return tr
}

// WithTemplate classifies every case with template instead of the default.
func (tr *TestRunner) WithTemplate(template string) *TestRunner {
	tr.template = template
	return tr
}

// WithRateLimit paces classification calls across all providers.
func (tr *TestRunner) WithRateLimit(r rate.Limit, burst int) *TestRunner {
	tr.limiter = rate.NewLimiter(r, burst)
	return tr
}

// AddCase adds a case classifying input.
func (tr *TestRunner) AddCase(name, input string) *TestCase {
	tc := &TestCase{Name: name, Input: input, Timeout: DefaultTestTimeout}
	tr.cases = append(tr.cases, tc)
	return tc
}

// Metrics returns the metrics gathered so far.
func (tr *TestRunner) Metrics() *TestMetrics {
	return tr.metrics
}

// HasAvailableProviders drops providers that cannot be reached and reports
// whether any remain. The mock provider is always available.
func (tr *TestRunner) HasAvailableProviders() bool {
	available := tr.providers[:0]
	for _, p := range tr.providers {
		if err := tr.probe(p); err != nil {
			tr.t.Logf("Skipping provider %s: %v", p.Name, err)
			continue
		}
		available = append(available, p)
	}
	tr.providers = available
	return len(available) > 0
}

func (tr *TestRunner) probe(p TestProvider) error {
	cfg := tr.providerConfig(p)
	if cfg.ProviderType == config.ProviderMock {
		return nil
	}
	client := &http.Client{Timeout: DefaultProbeTimeout}
	resp, err := client.Get(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (tr *TestRunner) providerConfig(p TestProvider) config.LLMConfig {
	cfg := tr.config.LLM
	cfg.ProviderType = p.Name
	if p.Model != "" {
		cfg.Model = p.Model
	}
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	return cfg
}

func (tr *TestRunner) setupClassifier(t *testing.T, p TestProvider) *classifier.TextClassifier {
	t.Helper()
	model, err := llm.New(tr.providerConfig(p), nil)
	if err != nil {
		t.Fatalf("Failed to create model for %s: %v", p.Name, err)
	}
	clf, err := classifier.New(model, classifier.WithTemplate(tr.template), classifier.WithCacheSize(0))
	if err != nil {
		t.Fatalf("Failed to create classifier for %s: %v", p.Name, err)
	}
	return clf
}

// Run executes every case against every provider as subtests.
func (tr *TestRunner) Run(ctx context.Context) {
	for _, provider := range tr.providers {
		tr.t.Run(provider.Name, func(t *testing.T) {
			clf := tr.setupClassifier(t, provider)
			for _, tc := range tr.cases {
				t.Run(tc.Name, func(t *testing.T) {
					tr.runCase(ctx, t, clf, provider, tc)
				})
			}
		})
	}
}

func (tr *TestRunner) runCase(ctx context.Context, t *testing.T, clf *classifier.TextClassifier, provider TestProvider, tc *TestCase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, tc.Timeout)
	defer cancel()

	if err := tr.limiter.Wait(ctx); err != nil {
		tr.recordError(provider.Name, err)
		t.Errorf("Rate limiter: %v", err)
		return
	}

	start := time.Now()
	pred, err := clf.Classify(ctx, tc.Input)
	tr.recordTiming(provider.Name, time.Since(start))
	if err != nil {
		tr.recordError(provider.Name, err)
		t.Errorf("Classification failed: %v", err)
		return
	}

	passed := true
	for _, validate := range tc.Validations {
		if err := validate(pred); err != nil {
			passed = false
			t.Errorf("Validation failed: %v", err)
		}
	}
	tr.recordOutcome(provider.Name, passed)
}

func (tr *TestRunner) recordTiming(provider string, d time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.metrics.ResponseTimes[provider] = append(tr.metrics.ResponseTimes[provider], d)
}

func (tr *TestRunner) recordError(provider string, err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.metrics.Errors[provider] = append(tr.metrics.Errors[provider], err)
	tr.metrics.Total[provider]++
}

func (tr *TestRunner) recordOutcome(provider string, passed bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.metrics.Total[provider]++
	if passed {
		tr.metrics.Correct[provider]++
	}
}

// ExpectLabel checks the predicted label.
func ExpectLabel(label string) ValidationFunc {
	return func(p classifier.Prediction) error {
		if p.Label != label {
			return fmt.Errorf("expected label %q, got %q (confidence %.2f)", label, p.Label, p.Confidence)
		}
		return nil
	}
}

// ExpectConfidenceAtLeast checks the prediction confidence.
func ExpectConfidenceAtLeast(minimum float64) ValidationFunc {
	return func(p classifier.Prediction) error {
		if p.Confidence < minimum {
			return fmt.Errorf("expected confidence >= %.2f, got %.2f", minimum, p.Confidence)
		}
		return nil
	}
}
