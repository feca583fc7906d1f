package optimizer

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/metrics"
)

// scoringClassifier scores whatever template is bound with score.
type scoringClassifier struct {
	template string
	score    func(template string) metrics.Report
	calls    []string
}

func (c *scoringClassifier) SetPromptTemplate(t string) { c.template = t }

func (c *scoringClassifier) Validate(_ context.Context, _ []dataset.Example) (metrics.Report, error) {
	c.calls = append(c.calls, c.template)
	return c.score(c.template), nil
}

// mockClassifier lets tests script Validate results and errors.
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) SetPromptTemplate(t string) { m.Called(t) }

func (m *mockClassifier) Validate(ctx context.Context, ex []dataset.Example) (metrics.Report, error) {
	args := m.Called(ctx, ex)
	return args.Get(0).(metrics.Report), args.Error(1)
}

func f1Report(f1 float64) metrics.Report {
	return metrics.Report{Accuracy: f1, Precision: f1, Recall: f1, F1: f1}
}

// lengthScore favours longer templates, capped at 1.
func lengthScore(t string) metrics.Report {
	return f1Report(min(1, float64(len(strings.Fields(t)))/40))
}

// tableScore scores listed templates and everything else as 0.
func tableScore(table map[string]float64) func(string) metrics.Report {
	return func(t string) metrics.Report { return f1Report(table[t]) }
}

func evaluatorFor(c Classifier) Evaluator {
	return NewPromptOptimizer(WithClassifier(c)).EvaluatePromptTemplate
}

var sampleData = []dataset.Example{
	{Text: "The election was rigged by the government", Label: "1"},
	{Text: "Fresh bread recipe with rosemary", Label: "0"},
	{Text: "Fake news spreads on social media", Label: "1"},
	{Text: "The weather is sunny today", Label: "0"},
}

// singleVariation is a generator whose variations are only the input.
type singleVariation struct{ *Generator }

func (singleVariation) Variations(t string) []string { return []string{t} }
