package optimizer

import "errors"

var (
	// ErrMissingStrategy is returned by Optimize when no strategy is bound.
	ErrMissingStrategy = errors.New("optimization strategy not provided")
	// ErrMissingClassifier is returned when a template is evaluated without a classifier.
	ErrMissingClassifier = errors.New("classifier not provided")
	// ErrInvalidStrategyState is returned when a strategy runs without an evaluator or generator.
	ErrInvalidStrategyState = errors.New("strategy requires an evaluator and a template generator")
	// ErrNoCandidateFound is returned when a run produced no scored candidate.
	ErrNoCandidateFound = errors.New("no valid candidate found during optimization")
)
