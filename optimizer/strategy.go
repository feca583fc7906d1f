package optimizer

import (
	"context"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
)

// Evaluator scores one template against labeled data.
type Evaluator func(ctx context.Context, template string, data []dataset.Example) (PromptCandidate, error)

// Params bounds a single strategy run. Zero fields take the defaults.
type Params struct {
	MaxGenerations int
	MaxIterations  int
}

const (
	DefaultMaxGenerations = 5
	DefaultMaxIterations  = 10
)

func (p Params) withDefaults() Params {
	if p.MaxGenerations <= 0 {
		p.MaxGenerations = DefaultMaxGenerations
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	return p
}

// Strategy searches for the best-scoring template starting from initial.
// Implementations are not safe for overlapping runs.
type Strategy interface {
	Name() string
	Optimize(ctx context.Context, initial []string, data []dataset.Example, evaluate Evaluator, gen TemplateGenerator, params Params) (PromptCandidate, error)
}

// ProgressEvent reports the best candidate after a generation or iteration.
// Population is the number of candidates carried into the next round.
type ProgressEvent struct {
	Strategy   string
	Round      int
	Population int
	Best       PromptCandidate
}

type strategyBase struct {
	logger   logging.Logger
	progress func(ProgressEvent)
}

// StrategyOption configures a strategy at construction.
type StrategyOption func(*strategyBase)

// WithStrategyLogger sets the logger for round-level debug output.
func WithStrategyLogger(l logging.Logger) StrategyOption {
	return func(s *strategyBase) {
		s.logger = l
	}
}

// WithProgress registers a callback invoked after every round.
func WithProgress(fn func(ProgressEvent)) StrategyOption {
	return func(s *strategyBase) {
		s.progress = fn
	}
}

func newStrategyBase(opts []StrategyOption) strategyBase {
	b := strategyBase{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *strategyBase) report(name string, round, population int, best PromptCandidate) {
	if b.progress != nil {
		b.progress(ProgressEvent{Strategy: name, Round: round, Population: population, Best: best})
	}
}

func checkCapabilities(evaluate Evaluator, gen TemplateGenerator) error {
	if evaluate == nil || gen == nil {
		return ErrInvalidStrategyState
	}
	return nil
}

func evaluateAll(ctx context.Context, templates []string, data []dataset.Example, evaluate Evaluator) ([]PromptCandidate, error) {
	out := make([]PromptCandidate, 0, len(templates))
	for _, t := range templates {
		c, err := evaluate(ctx, t, data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
