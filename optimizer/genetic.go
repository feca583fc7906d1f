package optimizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/validation"
)

const tournamentSize = 3

var (
	instructionWords = []string{"Please", "Carefully", "Accurately", "Precisely"}
	contextClauses   = []string{
		"for disinformation analysis",
		"related to misinformation",
		"in the context of false information",
	}
	synonyms = [][2]string{
		{"classify", "categorize"},
		{"determine", "identify"},
		{"analyze", "examine"},
		{"evaluate", "assess"},
		{"text", "content"},
	}
)

// GeneticConfig holds the genetic search hyperparameters.
type GeneticConfig struct {
	PopulationSize int     `json:"population_size" validate:"gte=1"`
	MutationRate   float64 `json:"mutation_rate" validate:"gte=0,lte=1"`
	CrossoverRate  float64 `json:"crossover_rate" validate:"gte=0,lte=1"`
	Seed           uint64  `json:"seed"`
}

// DefaultGeneticConfig returns a population of 10 with mutation 0.1, crossover 0.8 and seed 42.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize: 10,
		MutationRate:   0.1,
		CrossoverRate:  0.8,
		Seed:           42,
	}
}

// GeneticStrategy evolves a population of templates with tournament
// selection, word-level crossover and mutation.
type GeneticStrategy struct {
	strategyBase
	cfg GeneticConfig
	rng *rand.Rand
}

// NewGeneticStrategy validates cfg and seeds the strategy's random source from cfg.Seed.
func NewGeneticStrategy(cfg GeneticConfig, opts ...StrategyOption) (*GeneticStrategy, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid genetic config: %s", validation.Describe(err))
	}
	return &GeneticStrategy{
		strategyBase: newStrategyBase(opts),
		cfg:          cfg,
		rng:          rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}, nil
}

func (g *GeneticStrategy) Name() string { return "genetic" }

// Config returns the hyperparameters the strategy was built with.
func (g *GeneticStrategy) Config() GeneticConfig { return g.cfg }

// Optimize runs params.MaxGenerations generations and returns the best
// candidate seen. The best F1 never decreases across generations.
func (g *GeneticStrategy) Optimize(ctx context.Context, initial []string, data []dataset.Example, evaluate Evaluator, gen TemplateGenerator, params Params) (PromptCandidate, error) {
	if err := checkCapabilities(evaluate, gen); err != nil {
		return PromptCandidate{}, err
	}
	params = params.withDefaults()

	population, err := evaluateAll(ctx, g.seedTemplates(initial, gen), data, evaluate)
	if err != nil {
		return PromptCandidate{}, err
	}
	best, ok := Best(population)
	if !ok {
		return PromptCandidate{}, fmt.Errorf("%w: empty initial population", ErrNoCandidateFound)
	}
	g.logger.Debug("Seeded population", "size", len(population), "best_f1", best.F1)

	for generation := 1; generation <= params.MaxGenerations; generation++ {
		children := g.breed(g.selectParents(population, g.cfg.PopulationSize/2))
		if len(children) > g.cfg.PopulationSize {
			children = children[:g.cfg.PopulationSize]
		}
		offspring, err := evaluateAll(ctx, children, data, evaluate)
		if err != nil {
			return PromptCandidate{}, err
		}

		combined := append(append(make([]PromptCandidate, 0, len(population)+len(offspring)), population...), offspring...)
		SortByF1(combined)
		if len(combined) > g.cfg.PopulationSize {
			combined = combined[:g.cfg.PopulationSize]
		}
		population = combined

		if top, _ := Best(population); top.Better(best) {
			best = top
		}
		g.logger.Debug("Generation complete", "generation", generation, "offspring", len(offspring), "best_f1", best.F1)
		g.report(g.Name(), generation, len(population), best)
	}
	return best, nil
}

// seedTemplates is the ordered union of initial, the first three
// variations of each, and base templates when short, capped at the
// population size.
func (g *GeneticStrategy) seedTemplates(initial []string, gen TemplateGenerator) []string {
	seen := map[string]bool{}
	var out []string
	add := func(ts []string) {
		for _, t := range ts {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	add(initial)
	for _, t := range initial {
		v := gen.Variations(t)
		add(v[:min(3, len(v))])
	}
	if len(out) < g.cfg.PopulationSize {
		add(gen.BaseTemplates())
	}
	if len(out) > g.cfg.PopulationSize {
		out = out[:g.cfg.PopulationSize]
	}
	return out
}

// selectParents runs n tournaments. Each tournament draws up to three
// distinct members; the same member may win several tournaments.
func (g *GeneticStrategy) selectParents(population []PromptCandidate, n int) []PromptCandidate {
	if len(population) == 0 {
		return nil
	}
	size := min(tournamentSize, len(population))
	parents := make([]PromptCandidate, 0, n)
	for i := 0; i < n; i++ {
		tournament := make([]PromptCandidate, size)
		for j, idx := range g.rng.Perm(len(population))[:size] {
			tournament[j] = population[idx]
		}
		winner, _ := Best(tournament)
		parents = append(parents, winner)
	}
	return parents
}

// breed pairs adjacent parents; an odd last parent is left out.
func (g *GeneticStrategy) breed(parents []PromptCandidate) []string {
	var children []string
	for i := 0; i+1 < len(parents); i += 2 {
		a, b := parents[i].Template, parents[i+1].Template
		child1, child2 := a, b
		if g.rng.Float64() < g.cfg.CrossoverRate {
			child1 = g.crossover(a, b)
			child2 = g.crossover(b, a)
		}
		if g.rng.Float64() < g.cfg.MutationRate {
			child1 = g.mutate(child1)
		}
		if g.rng.Float64() < g.cfg.MutationRate {
			child2 = g.mutate(child2)
		}
		children = append(children, child1, child2)
	}
	return children
}

func (g *GeneticStrategy) crossover(first, second string) string {
	words1 := strings.Fields(first)
	words2 := strings.Fields(second)
	if len(words1) == 0 || len(words2) == 0 {
		return first
	}

	shortest := min(len(words1), len(words2))
	if shortest <= 2 {
		if len(words2) > 1 {
			return words1[0] + " " + strings.Join(words2[1:], " ")
		}
		return first
	}

	point := 1 + g.rng.IntN(shortest-1)
	child := strings.Join(append(append([]string{}, words1[:point]...), words2[point:]...), " ")
	if !strings.Contains(child, Placeholder) && strings.Contains(first, Placeholder) {
		child += " " + Placeholder
	}
	if child == first {
		child = strings.Join(append([]string{words2[0]}, words1[1:]...), " ")
	}
	return child
}

func (g *GeneticStrategy) mutate(template string) string {
	switch g.rng.IntN(3) {
	case 0:
		return g.addInstruction(template)
	case 1:
		return replaceSynonym(template)
	default:
		return g.addContext(template)
	}
}

func (g *GeneticStrategy) addInstruction(template string) string {
	word := instructionWords[g.rng.IntN(len(instructionWords))]
	lower := strings.ToLower(template)
	if strings.Contains(lower, strings.ToLower(word)) {
		return template
	}
	return word + " " + lower
}

// replaceSynonym applies the first synonym whose source word appears
// (case-insensitively) and whose target does not. The placeholder is
// never rewritten.
func replaceSynonym(template string) string {
	parts := strings.Split(template, Placeholder)
	lower := strings.ToLower(strings.Join(parts, " "))
	for _, s := range synonyms {
		if strings.Contains(lower, s[0]) && !strings.Contains(lower, s[1]) {
			for i := range parts {
				parts[i] = strings.ReplaceAll(parts[i], s[0], s[1])
			}
			return strings.Join(parts, Placeholder)
		}
	}
	return template
}

func (g *GeneticStrategy) addContext(template string) string {
	clause := contextClauses[g.rng.IntN(len(contextClauses))]
	if strings.Contains(template, clause) {
		return template
	}
	head, tail, found := strings.Cut(template, ":")
	if !found {
		return template
	}
	return head + " " + clause + ": " + tail
}
