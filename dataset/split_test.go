package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeExamples(pos, neg int) []Example {
	var out []Example
	for i := 0; i < pos; i++ {
		out = append(out, Example{Text: fmt.Sprintf("election story number %d", i), Label: "1"})
	}
	for i := 0; i < neg; i++ {
		out = append(out, Example{Text: fmt.Sprintf("recipe for dinner %d", i), Label: "0"})
	}
	return out
}

func TestRandomSplit(t *testing.T) {
	data := makeExamples(5, 5)
	s, err := NewSplitter(1).RandomSplit(data, DefaultRatios)
	require.NoError(t, err)
	assert.Len(t, s.Train, 7)
	assert.Len(t, s.Validation, 2)
	assert.Len(t, s.Test, 1)
	assert.Equal(t, 10, s.Total())
	assert.ElementsMatch(t, data, append(append(append([]Example{}, s.Train...), s.Validation...), s.Test...))
}

func TestSplitDeterministic(t *testing.T) {
	data := makeExamples(10, 10)
	a, err := NewSplitter(7).RandomSplit(data, DefaultRatios)
	require.NoError(t, err)
	b, err := NewSplitter(7).RandomSplit(data, DefaultRatios)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStratifiedSplitKeepsProportions(t *testing.T) {
	data := makeExamples(20, 10)
	s, err := NewSplitter(3).StratifiedSplit(data, Ratios{Train: 0.5, Validation: 0.3, Test: 0.2})
	require.NoError(t, err)

	_, train := LabelCounts(s.Train)
	_, val := LabelCounts(s.Validation)
	_, test := LabelCounts(s.Test)
	assert.Equal(t, map[string]int{"1": 10, "0": 5}, train)
	assert.Equal(t, map[string]int{"1": 6, "0": 3}, val)
	assert.Equal(t, map[string]int{"1": 4, "0": 2}, test)
}

func TestInvalidRatios(t *testing.T) {
	sp := NewSplitter(1)
	_, err := sp.RandomSplit(makeExamples(2, 2), Ratios{Train: 0.5, Validation: 0.5, Test: 0.5})
	assert.ErrorIs(t, err, ErrInvalidRatios)
	_, err = sp.StratifiedSplit(makeExamples(2, 2), Ratios{Train: 0.9})
	assert.ErrorIs(t, err, ErrInvalidRatios)
}

func TestKFold(t *testing.T) {
	data := makeExamples(6, 5)
	folds, err := NewSplitter(5).KFold(data, 3)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Len(t, folds[0], 4)
	assert.Len(t, folds[1], 4)
	assert.Len(t, folds[2], 3)

	var all []Example
	for _, f := range folds {
		all = append(all, f...)
	}
	assert.ElementsMatch(t, data, all)

	_, err = NewSplitter(5).KFold(data, 1)
	assert.ErrorIs(t, err, ErrInvalidFolds)
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.False(t, v.IsBalanced(nil, 0.2))
	assert.False(t, v.IsBalanced(makeExamples(3, 0), 0.2))
	assert.True(t, v.IsBalanced(makeExamples(6, 4), 0.2))
	assert.False(t, v.IsBalanced(makeExamples(9, 1), 0.2))

	assert.True(t, v.HasMinimumSamplesPerClass(makeExamples(2, 2), 2))
	assert.False(t, v.HasMinimumSamplesPerClass(makeExamples(2, 1), 2))
	assert.False(t, v.HasMinimumSamplesPerClass(nil, 1))

	assert.Equal(t, []string{"Dataset is empty"}, v.QualityIssues(nil))
	assert.Empty(t, v.QualityIssues(makeExamples(5, 5)))

	bad := append(makeExamples(9, 1), Example{Text: " ", Label: "1"})
	issues := v.QualityIssues(bad)
	assert.Contains(t, issues, "Found 1 empty text entries")
	assert.Contains(t, issues, "Dataset is significantly imbalanced")
	assert.Contains(t, issues, "Some classes have insufficient samples")
}

func TestManager(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, WriteCSV(good, Records(makeExamples(10, 10))))

	m := NewManager(WithSplitter(NewSplitter(9)))
	s, err := m.LoadAndSplit(good, DefaultRatios, true)
	require.NoError(t, err)
	assert.Equal(t, 20, s.Total())

	s, err = m.LoadAndSplit(good, DefaultRatios, false)
	require.NoError(t, err)
	assert.Len(t, s.Train, 14)

	folds, err := m.PrepareFolds(good, 4)
	require.NoError(t, err)
	assert.Len(t, folds, 4)

	skewed := filepath.Join(dir, "skewed.csv")
	require.NoError(t, WriteCSV(skewed, Records(makeExamples(10, 1))))
	_, err = m.LoadAndSplit(skewed, DefaultRatios, true)
	assert.ErrorIs(t, err, ErrQualityIssues)

	_, err = m.LoadAndSplit(filepath.Join(dir, "missing.csv"), DefaultRatios, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
