package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/metrics"
)

// recordingStrategy returns scripted candidates and records its inputs.
type recordingStrategy struct {
	results []PromptCandidate
	inputs  [][]string
	params  []Params
	err     error
}

func (s *recordingStrategy) Name() string { return "recording" }

func (s *recordingStrategy) Optimize(ctx context.Context, initial []string, data []dataset.Example, evaluate Evaluator, gen TemplateGenerator, params Params) (PromptCandidate, error) {
	s.inputs = append(s.inputs, initial)
	s.params = append(s.params, params)
	if s.err != nil {
		return PromptCandidate{}, s.err
	}
	r := s.results[min(len(s.inputs)-1, len(s.results)-1)]
	return r, nil
}

func TestOptimizeRequiresStrategy(t *testing.T) {
	po := NewPromptOptimizer(WithClassifier(&scoringClassifier{score: lengthScore}))
	_, err := po.Optimize(context.Background(), sampleData, 0.9, 3)
	assert.ErrorIs(t, err, ErrMissingStrategy)
}

func TestEvaluateRequiresClassifier(t *testing.T) {
	po := NewPromptOptimizer()
	_, err := po.EvaluatePromptTemplate(context.Background(), "x {text}", sampleData)
	assert.ErrorIs(t, err, ErrMissingClassifier)

	po = NewPromptOptimizer(WithStrategy(newIterative(t)))
	_, err = po.Optimize(context.Background(), sampleData, 0.9, 2)
	assert.ErrorIs(t, err, ErrMissingClassifier)
}

func TestEvaluatePromptTemplate(t *testing.T) {
	m := &mockClassifier{}
	report := metrics.Report{Accuracy: 0.75, Precision: 0.5, Recall: 1, F1: 2.0 / 3.0}
	m.On("SetPromptTemplate", "Label: {text}").Return().Once()
	m.On("Validate", mock.Anything, sampleData).Return(report, nil).Once()

	po := NewPromptOptimizer(WithClassifier(m))
	c, err := po.EvaluatePromptTemplate(context.Background(), "Label: {text}", sampleData)
	require.NoError(t, err)
	assert.Equal(t, PromptCandidate{Template: "Label: {text}", Accuracy: 0.75, Precision: 0.5, Recall: 1, F1: 2.0 / 3.0}, c)
	m.AssertExpectations(t)
}

func TestEvaluateRejectsOutOfRangeScores(t *testing.T) {
	m := &mockClassifier{}
	m.On("SetPromptTemplate", mock.Anything).Return()
	m.On("Validate", mock.Anything, mock.Anything).Return(metrics.Report{F1: 1.5}, nil)
	_, err := NewPromptOptimizer(WithClassifier(m)).EvaluatePromptTemplate(context.Background(), "x", sampleData)
	assert.Error(t, err)
}

func TestOptimizeSeedsThenIntensifies(t *testing.T) {
	s := &recordingStrategy{results: []PromptCandidate{
		{Template: "first", Accuracy: 0.5, F1: 0.5},
		{Template: "second", Accuracy: 0.6, F1: 0.6},
		{Template: "worse", Accuracy: 0.9, F1: 0.4},
	}}
	var iterations []int
	po := NewPromptOptimizer(
		WithStrategy(s),
		WithClassifier(&scoringClassifier{score: lengthScore}),
		WithIterationCallback(func(i int, _ PromptCandidate) { iterations = append(iterations, i) }),
	)

	best, err := po.Optimize(context.Background(), sampleData, 0.95, 4)
	require.NoError(t, err)
	assert.Equal(t, "second", best.Template)

	require.Len(t, s.inputs, 4)
	assert.Equal(t, NewGenerator().BaseTemplates(), s.inputs[0])
	assert.Equal(t, []string{"first"}, s.inputs[1])
	assert.Equal(t, []string{"second"}, s.inputs[2])
	assert.Equal(t, []string{"second"}, s.inputs[3])
	for _, p := range s.params {
		assert.Equal(t, Params{MaxGenerations: 1, MaxIterations: 1}, p)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, iterations)

	hist := po.History()
	require.Len(t, hist, 4)
	assert.Equal(t, "first", hist[0].Template)
	assert.Equal(t, "second", hist[3].Template)
}

func TestOptimizeStopsAtTargetAccuracy(t *testing.T) {
	s := &recordingStrategy{results: []PromptCandidate{
		{Template: "a", Accuracy: 0.7, F1: 0.6},
		{Template: "b", Accuracy: 0.85, F1: 0.8},
		{Template: "c", Accuracy: 0.99, F1: 0.99},
	}}
	logger := logging.NewMockLogger()
	po := NewPromptOptimizer(WithStrategy(s), WithClassifier(&scoringClassifier{score: lengthScore}), WithLogger(logger))

	best, err := po.Optimize(context.Background(), sampleData, 0.8, 10)
	require.NoError(t, err)
	assert.Equal(t, "b", best.Template)
	assert.Len(t, s.inputs, 2)
	assert.True(t, logger.HasMessage("Target accuracy reached"))
}

func TestOptimizeZeroIterations(t *testing.T) {
	po := NewPromptOptimizer(WithStrategy(&recordingStrategy{}), WithClassifier(&scoringClassifier{score: lengthScore}))
	_, err := po.Optimize(context.Background(), sampleData, 0.9, 0)
	assert.ErrorIs(t, err, ErrNoCandidateFound)
}

func TestOptimizePropagatesStrategyError(t *testing.T) {
	boom := errors.New("connection refused")
	po := NewPromptOptimizer(WithStrategy(&recordingStrategy{err: boom}), WithClassifier(&scoringClassifier{score: lengthScore}))
	_, err := po.Optimize(context.Background(), sampleData, 0.9, 3)
	assert.Equal(t, boom, err)
}

func TestOptimizeWithFewShotSeeds(t *testing.T) {
	s := &recordingStrategy{results: []PromptCandidate{{Template: "x", Accuracy: 1, F1: 1}}}
	po := NewPromptOptimizer(WithStrategy(s), WithClassifier(&scoringClassifier{score: lengthScore}), WithFewShotSeeds(true))
	_, err := po.Optimize(context.Background(), sampleData, 0.9, 1)
	require.NoError(t, err)

	gen := NewGenerator()
	want := append(gen.BaseTemplates(), gen.FewShotTemplates(sampleData)...)
	assert.Equal(t, want, s.inputs[0])
}

func TestOptimizeEndToEnd(t *testing.T) {
	for _, name := range []string{"genetic", "iterative"} {
		t.Run(name, func(t *testing.T) {
			var strategy Strategy
			if name == "genetic" {
				strategy = newGenetic(t, DefaultGeneticConfig())
			} else {
				strategy = newIterative(t)
			}
			c := &scoringClassifier{score: lengthScore}
			po := NewPromptOptimizer(WithStrategy(strategy), WithClassifier(c))

			best, err := po.Optimize(context.Background(), sampleData, 1.0, 3)
			require.NoError(t, err)
			for _, tmpl := range NewGenerator().BaseTemplates() {
				assert.GreaterOrEqual(t, best.F1, lengthScore(tmpl).F1)
			}
			hist := po.History()
			for i := 1; i < len(hist); i++ {
				assert.GreaterOrEqual(t, hist[i].F1, hist[i-1].F1)
			}
		})
	}
}

func TestBatchOptimizer(t *testing.T) {
	factory := func() (*PromptOptimizer, error) {
		s, err := NewIterativeStrategy(DefaultIterativeConfig())
		if err != nil {
			return nil, err
		}
		return NewPromptOptimizer(WithStrategy(s), WithClassifier(&scoringClassifier{score: lengthScore})), nil
	}
	b := NewBatchOptimizer(factory, nil)
	results := b.OptimizeAll(context.Background(), []BatchJob{
		{Name: "first", Data: sampleData, TargetAccuracy: 1, MaxIterations: 2},
		{Name: "second", Data: sampleData, TargetAccuracy: 1, MaxIterations: 0},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Name)
	assert.NoError(t, results[0].Error)
	assert.NotEmpty(t, results[0].Best.Template)
	assert.ErrorIs(t, results[1].Error, ErrNoCandidateFound)

	failing := NewBatchOptimizer(func() (*PromptOptimizer, error) { return nil, errors.New("no model") }, logging.NewNopLogger())
	results = failing.OptimizeAll(context.Background(), []BatchJob{{Name: "x"}})
	assert.ErrorContains(t, results[0].Error, "no model")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limited := NewBatchOptimizer(factory, nil)
	limited.SetRateLimit(0.001, 1)
	results = limited.OptimizeAll(ctx, []BatchJob{{Name: "a"}, {Name: "b"}})
	for _, r := range results {
		assert.ErrorContains(t, r.Error, "rate limiter")
	}
}
