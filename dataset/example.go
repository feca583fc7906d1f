// Package dataset reads, writes, splits and checks labeled text data.
package dataset

import (
	"fmt"

	"github.com/teilomillet/relcheck/internal/validation"
)

const (
	LabelRelevant    = "1"
	LabelNotRelevant = "0"
)

// Example is one labeled text.
type Example struct {
	Text  string `json:"text" validate:"required"`
	Label string `json:"label" validate:"binarylabel"`
}

// Validate reports a missing text or a label other than "0" or "1".
func (e Example) Validate() error {
	if err := validation.Struct(e); err != nil {
		return fmt.Errorf("invalid example: %s", validation.Describe(err))
	}
	return nil
}

// Texts returns the text of every example in order.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = e.Text
	}
	return out
}

// Labels returns the label of every example in order.
func Labels(examples []Example) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = e.Label
	}
	return out
}

// LabelCounts counts examples per label, keeping first-seen label order.
func LabelCounts(examples []Example) (labels []string, counts map[string]int) {
	counts = make(map[string]int)
	for _, e := range examples {
		if _, ok := counts[e.Label]; !ok {
			labels = append(labels, e.Label)
		}
		counts[e.Label]++
	}
	return labels, counts
}
