package dataset

import (
	"fmt"
	"math"
	"strings"
)

// Validator checks a labeled dataset for common quality problems.
type Validator struct {
	// BalanceThreshold is the tolerated deviation of each class share
	// from an even split when computing QualityIssues.
	BalanceThreshold float64
	// MinSamplesPerClass is the per-class floor used by QualityIssues.
	MinSamplesPerClass int
	// MinTextLength marks texts shorter than this (after trimming) as very short.
	MinTextLength int
}

func NewValidator() *Validator {
	return &Validator{
		BalanceThreshold:   0.3,
		MinSamplesPerClass: 2,
		MinTextLength:      5,
	}
}

// IsBalanced reports whether every class share is within threshold of
// 1/classes. Empty or single-class data is never balanced.
func (v *Validator) IsBalanced(data []Example, threshold float64) bool {
	if len(data) == 0 {
		return false
	}
	_, counts := LabelCounts(data)
	if len(counts) < 2 {
		return false
	}
	target := 1.0 / float64(len(counts))
	for _, c := range counts {
		share := float64(c) / float64(len(data))
		if math.Abs(share-target) > threshold {
			return false
		}
	}
	return true
}

// HasMinimumSamplesPerClass reports whether every present class has at
// least minSamples examples.
func (v *Validator) HasMinimumSamplesPerClass(data []Example, minSamples int) bool {
	if len(data) == 0 {
		return false
	}
	_, counts := LabelCounts(data)
	for _, c := range counts {
		if c < minSamples {
			return false
		}
	}
	return true
}

// QualityIssues lists every problem found; nil means the data is usable.
func (v *Validator) QualityIssues(data []Example) []string {
	if len(data) == 0 {
		return []string{"Dataset is empty"}
	}

	var issues []string
	empty, short, unlabeled := 0, 0, 0
	for _, e := range data {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			empty++
		}
		if len(text) < v.MinTextLength {
			short++
		}
		if e.Label == "" {
			unlabeled++
		}
	}
	if empty > 0 {
		issues = append(issues, fmt.Sprintf("Found %d empty text entries", empty))
	}
	if float64(short) > float64(len(data))*0.1 {
		issues = append(issues, fmt.Sprintf("Found %d very short text entries", short))
	}
	if !v.IsBalanced(data, v.BalanceThreshold) {
		issues = append(issues, "Dataset is significantly imbalanced")
	}
	if !v.HasMinimumSamplesPerClass(data, v.MinSamplesPerClass) {
		issues = append(issues, "Some classes have insufficient samples")
	}
	if unlabeled > 0 {
		issues = append(issues, fmt.Sprintf("Found %d entries with missing labels", unlabeled))
	}
	return issues
}
