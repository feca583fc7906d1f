package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/validation"
)

// IterativeConfig holds the iterative search hyperparameters.
type IterativeConfig struct {
	// ImprovementThreshold is the F1 gain a refinement must exceed to be adopted.
	ImprovementThreshold float64 `json:"improvement_threshold" validate:"gte=0,lte=1"`
	// RefinementSteps is recorded with the strategy configuration; the
	// search itself is bounded by Params.MaxIterations.
	RefinementSteps int `json:"refinement_steps" validate:"gte=0"`
}

// DefaultIterativeConfig returns an improvement threshold of 0.01 with five refinement steps.
func DefaultIterativeConfig() IterativeConfig {
	return IterativeConfig{
		ImprovementThreshold: 0.01,
		RefinementSteps:      5,
	}
}

// Refinement names a fallback rewrite applied when the generator offers
// no variation of the current template.
type Refinement string

const (
	RefineClarity     Refinement = "clarity"
	RefineExamples    Refinement = "examples"
	RefineSpecificity Refinement = "specificity"
	RefineStructure   Refinement = "structure"
)

const examplesBlock = "\nExamples:\n- Political conspiracy theory → 1\n- Weather forecast → 0\n\n"

var domainTerms = []string{"disinformation", "misinformation", "false information", "propaganda"}

// IterativeStrategy hill-climbs from the best initial template and stops
// at the first refinement that does not improve F1 by more than the threshold.
type IterativeStrategy struct {
	strategyBase
	cfg IterativeConfig
}

// NewIterativeStrategy validates cfg and returns a hill-climbing strategy.
func NewIterativeStrategy(cfg IterativeConfig, opts ...StrategyOption) (*IterativeStrategy, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid iterative config: %s", validation.Describe(err))
	}
	return &IterativeStrategy{strategyBase: newStrategyBase(opts), cfg: cfg}, nil
}

func (s *IterativeStrategy) Name() string { return "iterative" }

// Config returns the hyperparameters the strategy was built with.
func (s *IterativeStrategy) Config() IterativeConfig { return s.cfg }

func (s *IterativeStrategy) Optimize(ctx context.Context, initial []string, data []dataset.Example, evaluate Evaluator, gen TemplateGenerator, params Params) (PromptCandidate, error) {
	if err := checkCapabilities(evaluate, gen); err != nil {
		return PromptCandidate{}, err
	}
	params = params.withDefaults()

	candidates, err := evaluateAll(ctx, initial, data, evaluate)
	if err != nil {
		return PromptCandidate{}, err
	}
	current, ok := Best(candidates)
	if !ok {
		base := gen.BaseTemplates()
		if len(base) == 0 {
			return PromptCandidate{}, fmt.Errorf("%w: no initial or base templates", ErrNoCandidateFound)
		}
		if current, err = evaluate(ctx, base[0], data); err != nil {
			return PromptCandidate{}, err
		}
	}

	for iteration := 1; iteration <= params.MaxIterations; iteration++ {
		var refined string
		if variations := gen.Variations(current.Template); len(variations) >= 2 {
			refined = variations[1]
		} else {
			refined = Refine(current.Template, RefinementFor(current.Template))
		}

		candidate, err := evaluate(ctx, refined, data)
		if err != nil {
			return PromptCandidate{}, err
		}
		improvement := candidate.F1 - current.F1
		if improvement <= s.cfg.ImprovementThreshold {
			s.logger.Debug("Refinement stalled", "iteration", iteration, "improvement", improvement)
			break
		}
		current = candidate
		s.logger.Debug("Refinement adopted", "iteration", iteration, "best_f1", current.F1)
		s.report(s.Name(), iteration, 1, current)
	}
	return current, nil
}

// RefinementFor picks the fallback rewrite for template: clarity for
// templates under ten words, then examples, specificity and structure.
func RefinementFor(template string) Refinement {
	lower := strings.ToLower(template)
	switch {
	case len(strings.Fields(template)) < 10:
		return RefineClarity
	case !strings.Contains(lower, "example"):
		return RefineExamples
	case !strings.Contains(lower, "disinformation"):
		return RefineSpecificity
	default:
		return RefineStructure
	}
}

// Refine applies one deterministic rewrite to template.
func Refine(template string, r Refinement) string {
	switch r {
	case RefineClarity:
		return improveClarity(template)
	case RefineExamples:
		if strings.Contains(strings.ToLower(template), "example") {
			return template
		}
		return examplesBlock + template
	case RefineSpecificity:
		lower := strings.ToLower(template)
		for _, term := range domainTerms {
			if strings.Contains(lower, term) {
				return template
			}
		}
		return strings.ReplaceAll(template, Placeholder, "disinformation-related content: "+Placeholder)
	case RefineStructure:
		if strings.Contains(template, "\n") {
			return template
		}
		return strings.ReplaceAll(template, ": "+Placeholder, ":\n"+Placeholder+"\n\nClassification:")
	default:
		return template
	}
}

func improveClarity(template string) string {
	lower := strings.ToLower(template)
	switch {
	case strings.Contains(lower, "classify"):
		if strings.Contains(template, "Classify") {
			return strings.ReplaceAll(template, "Classify:",
				"Classify the following text as either related (1) or not related (0) to disinformation:")
		}
		return strings.ReplaceAll(template, "classify",
			"classify the following text as either related (1) or not related (0) to disinformation")
	case strings.Contains(lower, "determine"):
		return "Please " + lower
	default:
		return "Task: " + template
	}
}
