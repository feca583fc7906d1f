package optimizer

import (
	"context"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/metrics"
)

// Classifier is the scoring capability the optimizer binds templates to.
type Classifier interface {
	SetPromptTemplate(template string)
	Validate(ctx context.Context, examples []dataset.Example) (metrics.Report, error)
}

// IterationCallback is called after every optimizer iteration with the
// best candidate found so far.
type IterationCallback func(iteration int, best PromptCandidate)

type OptimizerOption func(*PromptOptimizer)

// PromptOptimizer drives a strategy over repeated rounds until the best
// candidate reaches a target accuracy.
type PromptOptimizer struct {
	strategy          Strategy
	classifier        Classifier
	generator         TemplateGenerator
	logger            logging.Logger
	fewShotSeeds      bool
	iterationCallback IterationCallback
	history           []PromptCandidate
}

func WithStrategy(s Strategy) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.strategy = s
	}
}

func WithClassifier(c Classifier) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.classifier = c
	}
}

func WithGenerator(g TemplateGenerator) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.generator = g
	}
}

func WithLogger(l logging.Logger) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.logger = l
	}
}

// WithFewShotSeeds adds few-shot templates built from the training data
// to the seed templates.
func WithFewShotSeeds(enabled bool) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.fewShotSeeds = enabled
	}
}

func WithIterationCallback(callback IterationCallback) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.iterationCallback = callback
	}
}

// NewPromptOptimizer creates an optimizer with the default generator and a no-op logger.
func NewPromptOptimizer(opts ...OptimizerOption) *PromptOptimizer {
	po := &PromptOptimizer{
		generator: NewGenerator(),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(po)
	}
	return po
}

// Optimize runs up to maxIterations strategy rounds. The first round
// starts from the seed templates; later rounds start from the best
// template so far. Each round is limited to one generation or iteration.
func (po *PromptOptimizer) Optimize(ctx context.Context, data []dataset.Example, targetAccuracy float64, maxIterations int) (PromptCandidate, error) {
	if po.strategy == nil {
		return PromptCandidate{}, ErrMissingStrategy
	}
	po.history = nil

	seeds := po.seeds(data)
	round := Params{MaxGenerations: 1, MaxIterations: 1}

	var best PromptCandidate
	found := false
	for i := 0; i < maxIterations; i++ {
		initial := seeds
		if found {
			initial = []string{best.Template}
		}
		current, err := po.strategy.Optimize(ctx, initial, data, po.EvaluatePromptTemplate, po.generator, round)
		if err != nil {
			po.logger.Warn("Optimization iteration failed", "iteration", i+1, "error", err)
			return PromptCandidate{}, err
		}
		if !found || current.Better(best) {
			best = current
			found = true
		}
		po.history = append(po.history, best)
		po.logger.Debug("Optimization iteration complete", "iteration", i+1, "strategy", po.strategy.Name(), "accuracy", best.Accuracy, "f1", best.F1)
		if po.iterationCallback != nil {
			po.iterationCallback(i+1, best)
		}

		if MeetsTargetAccuracy(best.Accuracy, targetAccuracy) {
			po.logger.Info("Target accuracy reached", "iteration", i+1, "accuracy", best.Accuracy, "target", targetAccuracy)
			break
		}
	}

	if !found {
		return PromptCandidate{}, ErrNoCandidateFound
	}
	return best, nil
}

func (po *PromptOptimizer) seeds(data []dataset.Example) []string {
	seeds := po.generator.BaseTemplates()
	if !po.fewShotSeeds {
		return seeds
	}
	seen := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seen[s] = true
	}
	for _, s := range po.generator.FewShotTemplates(data) {
		if !seen[s] {
			seen[s] = true
			seeds = append(seeds, s)
		}
	}
	return seeds
}

// EvaluatePromptTemplate binds template to the classifier and scores it
// on data. Classifier errors are returned as is.
func (po *PromptOptimizer) EvaluatePromptTemplate(ctx context.Context, template string, data []dataset.Example) (PromptCandidate, error) {
	if po.classifier == nil {
		return PromptCandidate{}, ErrMissingClassifier
	}
	po.classifier.SetPromptTemplate(template)
	report, err := po.classifier.Validate(ctx, data)
	if err != nil {
		return PromptCandidate{}, err
	}
	return NewPromptCandidate(template, report)
}

// History returns the best candidate after each iteration of the last run.
func (po *PromptOptimizer) History() []PromptCandidate {
	return append([]PromptCandidate(nil), po.history...)
}
