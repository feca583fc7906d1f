// Package optimizer searches for prompt templates that score well on
// labeled data.
package optimizer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/teilomillet/relcheck/internal/validation"
	"github.com/teilomillet/relcheck/metrics"
)

// PromptCandidate is a template together with the scores it achieved.
// Candidates are ordered by F1 only.
type PromptCandidate struct {
	Template  string  `json:"template" yaml:"template"`
	Accuracy  float64 `json:"accuracy" yaml:"accuracy" validate:"gte=0,lte=1"`
	Precision float64 `json:"precision" yaml:"precision" validate:"gte=0,lte=1"`
	Recall    float64 `json:"recall" yaml:"recall" validate:"gte=0,lte=1"`
	F1        float64 `json:"f1" yaml:"f1" validate:"gte=0,lte=1"`
}

// NewPromptCandidate wraps a metrics report. Every score must lie in [0,1].
func NewPromptCandidate(template string, r metrics.Report) (PromptCandidate, error) {
	c := PromptCandidate{
		Template:  template,
		Accuracy:  r.Accuracy,
		Precision: r.Precision,
		Recall:    r.Recall,
		F1:        r.F1,
	}
	if err := validation.Struct(c); err != nil {
		return PromptCandidate{}, fmt.Errorf("invalid candidate scores: %s", validation.Describe(err))
	}
	return c, nil
}

// Report returns the candidate's scores.
func (c PromptCandidate) Report() metrics.Report {
	return metrics.Report{Accuracy: c.Accuracy, Precision: c.Precision, Recall: c.Recall, F1: c.F1}
}

// Better reports whether c has a strictly higher F1 than other.
func (c PromptCandidate) Better(other PromptCandidate) bool {
	return c.F1 > other.F1
}

// Fitness is the weighted score of the candidate.
func (c PromptCandidate) Fitness() float64 {
	return FitnessScore(c.Accuracy, c.Precision, c.Recall, c.F1)
}

// Best returns the first candidate with the highest F1.
func Best(candidates []PromptCandidate) (PromptCandidate, bool) {
	if len(candidates) == 0 {
		return PromptCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Better(best) {
			best = c
		}
	}
	return best, true
}

// SortByF1 orders candidates by descending F1, keeping the input order of ties.
func SortByF1(candidates []PromptCandidate) {
	slices.SortStableFunc(candidates, func(a, b PromptCandidate) int {
		return cmp.Compare(b.F1, a.F1)
	})
}

// FitnessScore weights the four scores, favouring accuracy and F1.
func FitnessScore(accuracy, precision, recall, f1 float64) float64 {
	return accuracy*0.3 + precision*0.2 + recall*0.2 + f1*0.3
}

// MeetsTargetAccuracy reports whether accuracy reached target.
func MeetsTargetAccuracy(accuracy, target float64) bool {
	return accuracy >= target
}
