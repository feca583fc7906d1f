package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	// ErrInvalidRatios is returned when split ratios do not sum to 1.
	ErrInvalidRatios = errors.New("ratios must sum to 1.0")
	// ErrInvalidFolds is returned when fewer than two folds are requested.
	ErrInvalidFolds = errors.New("k must be greater than 1")
)

// Ratios are the train/validation/test proportions of a split.
type Ratios struct {
	Train      float64 `json:"train" validate:"gte=0,lte=1"`
	Validation float64 `json:"validation" validate:"gte=0,lte=1"`
	Test       float64 `json:"test" validate:"gte=0,lte=1"`
}

// DefaultRatios is a 70/20/10 split.
var DefaultRatios = Ratios{Train: 0.7, Validation: 0.2, Test: 0.1}

func (r Ratios) check() error {
	if math.Abs(r.Train+r.Validation+r.Test-1) > 1e-6 {
		return fmt.Errorf("%w: got %.3f/%.3f/%.3f", ErrInvalidRatios, r.Train, r.Validation, r.Test)
	}
	if r.Train < 0 || r.Validation < 0 || r.Test < 0 {
		return fmt.Errorf("%w: negative ratio", ErrInvalidRatios)
	}
	return nil
}

// Split is a train/validation/test partition.
type Split struct {
	Train      []Example `json:"train"`
	Validation []Example `json:"validation"`
	Test       []Example `json:"test"`
}

// Total returns the number of examples across all three sets.
func (s Split) Total() int {
	return len(s.Train) + len(s.Validation) + len(s.Test)
}

// Splitter partitions data using its own seeded random source.
// It is not safe for concurrent use.
type Splitter struct {
	rng *rand.Rand
}

func NewSplitter(seed uint64) *Splitter {
	return &Splitter{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (s *Splitter) shuffle(data []Example) {
	s.rng.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })
}

func cut(data []Example, r Ratios) (train, val, test []Example) {
	n := len(data)
	nTrain := int(float64(n) * r.Train)
	nVal := int(float64(n) * r.Validation)
	return data[:nTrain], data[nTrain : nTrain+nVal], data[nTrain+nVal:]
}

// RandomSplit shuffles a copy of data and cuts it by ratio. Rounding
// remainders land in the test set.
func (s *Splitter) RandomSplit(data []Example, r Ratios) (Split, error) {
	if err := r.check(); err != nil {
		return Split{}, err
	}
	shuffled := append([]Example(nil), data...)
	s.shuffle(shuffled)
	train, val, test := cut(shuffled, r)
	return Split{Train: train, Validation: val, Test: test}, nil
}

// StratifiedSplit cuts each label group by ratio so every set keeps the
// label distribution of data.
func (s *Splitter) StratifiedSplit(data []Example, r Ratios) (Split, error) {
	if err := r.check(); err != nil {
		return Split{}, err
	}
	order := []string{}
	groups := map[string][]Example{}
	for _, e := range data {
		if _, ok := groups[e.Label]; !ok {
			order = append(order, e.Label)
		}
		groups[e.Label] = append(groups[e.Label], e)
	}

	var out Split
	for _, label := range order {
		group := groups[label]
		s.shuffle(group)
		train, val, test := cut(group, r)
		out.Train = append(out.Train, train...)
		out.Validation = append(out.Validation, val...)
		out.Test = append(out.Test, test...)
	}
	s.shuffle(out.Train)
	s.shuffle(out.Validation)
	s.shuffle(out.Test)
	return out, nil
}

// KFold shuffles a copy of data into k folds. The first len(data)%k folds
// get one extra example.
func (s *Splitter) KFold(data []Example, k int) ([][]Example, error) {
	if k <= 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFolds, k)
	}
	shuffled := append([]Example(nil), data...)
	s.shuffle(shuffled)

	size, remainder := len(data)/k, len(data)%k
	folds := make([][]Example, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		n := size
		if i < remainder {
			n++
		}
		folds = append(folds, shuffled[start:start+n])
		start += n
	}
	return folds, nil
}
