// Package metrics scores binary predictions against labels. The positive
// class is the label "1".
package metrics

import (
	"errors"
	"fmt"
)

// Positive is the label counted as a positive prediction.
const Positive = "1"

// ErrLengthMismatch is returned when predictions and labels differ in length.
var ErrLengthMismatch = errors.New("predictions and labels must have the same length")

// Report holds the four scores computed over one prediction run.
type Report struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	Precision float64 `json:"precision" yaml:"precision" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	Recall    float64 `json:"recall" yaml:"recall" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	F1        float64 `json:"f1" yaml:"f1" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
}

// Map returns the report keyed by metric name.
func (r Report) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":  r.Accuracy,
		"precision": r.Precision,
		"recall":    r.Recall,
		"f1":        r.F1,
	}
}

func (r Report) String() string {
	return fmt.Sprintf("accuracy=%.3f precision=%.3f recall=%.3f f1=%.3f", r.Accuracy, r.Precision, r.Recall, r.F1)
}

// FromMap builds a report from a metric mapping; missing keys read as 0.
func FromMap(m map[string]float64) Report {
	return Report{
		Accuracy:  m["accuracy"],
		Precision: m["precision"],
		Recall:    m["recall"],
		F1:        m["f1"],
	}
}

type confusion struct {
	total, correct           int
	truePos, predPos, actPos int
}

func count(predictions, labels []string) (confusion, error) {
	if len(predictions) != len(labels) {
		return confusion{}, fmt.Errorf("%w: %d predictions, %d labels", ErrLengthMismatch, len(predictions), len(labels))
	}
	c := confusion{total: len(labels)}
	for i, p := range predictions {
		l := labels[i]
		if p == l {
			c.correct++
		}
		if p == Positive {
			c.predPos++
			if l == Positive {
				c.truePos++
			}
		}
		if l == Positive {
			c.actPos++
		}
	}
	return c, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy returns the fraction of predictions equal to their label.
func Accuracy(predictions, labels []string) (float64, error) {
	c, err := count(predictions, labels)
	if err != nil {
		return 0, err
	}
	return ratio(c.correct, c.total), nil
}

// Precision returns true positives over predicted positives.
func Precision(predictions, labels []string) (float64, error) {
	c, err := count(predictions, labels)
	if err != nil {
		return 0, err
	}
	return ratio(c.truePos, c.predPos), nil
}

// Recall returns true positives over actual positives.
func Recall(predictions, labels []string) (float64, error) {
	c, err := count(predictions, labels)
	if err != nil {
		return 0, err
	}
	return ratio(c.truePos, c.actPos), nil
}

// F1 returns the harmonic mean of precision and recall.
func F1(predictions, labels []string) (float64, error) {
	c, err := count(predictions, labels)
	if err != nil {
		return 0, err
	}
	return harmonic(ratio(c.truePos, c.predPos), ratio(c.truePos, c.actPos)), nil
}

// Compute returns all four scores in one pass.
func Compute(predictions, labels []string) (Report, error) {
	c, err := count(predictions, labels)
	if err != nil {
		return Report{}, err
	}
	p := ratio(c.truePos, c.predPos)
	r := ratio(c.truePos, c.actPos)
	return Report{
		Accuracy:  ratio(c.correct, c.total),
		Precision: p,
		Recall:    r,
		F1:        harmonic(p, r),
	}, nil
}
