package optimizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/dataset"
)

func TestBaseTemplates(t *testing.T) {
	g := NewGenerator()
	base := g.BaseTemplates()
	require.GreaterOrEqual(t, len(base), 5)
	for _, tmpl := range base {
		assert.Equal(t, 1, strings.Count(tmpl, Placeholder), tmpl)
		assert.True(t, strings.Contains(tmpl, "1") && strings.Contains(tmpl, "0"), tmpl)
	}

	base[0] = "mutated"
	assert.NotEqual(t, "mutated", g.BaseTemplates()[0])
}

func TestVariations(t *testing.T) {
	g := NewGenerator()

	t.Run("classify template", func(t *testing.T) {
		tmpl := "Classify the text. Output 1 or 0: {text}"
		v := g.Variations(tmpl)
		assert.Equal(t, []string{
			tmpl,
			"Determine the text. Output 1 or 0: {text}",
			"Categorize the text. Output 1 or 0: {text}",
			"Classify the text. Output true or false: {text}",
			"Please classify the text. output 1 or 0: {text}",
			tmpl + "\n\nAnswer:",
			"Task: " + tmpl,
		}, v)
	})

	t.Run("no duplicates", func(t *testing.T) {
		for _, base := range g.BaseTemplates() {
			v := g.Variations(base)
			seen := map[string]bool{}
			for _, s := range v {
				assert.False(t, seen[s], "duplicate %q", s)
				seen[s] = true
			}
			assert.Equal(t, base, v[0])
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		tmpl := g.BaseTemplates()[2]
		assert.Equal(t, g.Variations(tmpl), g.Variations(tmpl))
	})
}

func TestVariationsPreservePlaceholder(t *testing.T) {
	g := NewGenerator()
	inputs := append(g.BaseTemplates(),
		"classify this",
		"Output 1 or 0 only",
		"{text}",
		"Classify: {text} and classify again",
		"",
	)
	for _, in := range inputs {
		has := strings.Contains(in, Placeholder)
		for _, v := range g.Variations(in) {
			assert.Equal(t, has, strings.Contains(v, Placeholder), "input %q variation %q", in, v)
		}
	}
}

func TestFewShotTemplates(t *testing.T) {
	g := NewGenerator()

	t.Run("empty falls back to base", func(t *testing.T) {
		assert.Equal(t, g.BaseTemplates(), g.FewShotTemplates(nil))
		assert.Equal(t, g.BaseTemplates(), g.FewShotTemplates([]dataset.Example{}))
	})

	t.Run("single class falls back to base", func(t *testing.T) {
		data := []dataset.Example{{Text: "a", Label: "1"}, {Text: "b", Label: "1"}}
		assert.Equal(t, g.BaseTemplates(), g.FewShotTemplates(data))
	})

	t.Run("two templates with one example per class", func(t *testing.T) {
		data := []dataset.Example{
			{Text: "weather", Label: "0"},
			{Text: "vote fraud", Label: "1"},
			{Text: "second positive", Label: "1"},
		}
		got := g.FewShotTemplates(data)
		shots := "Examples:\nText: vote fraud\nLabel: 1\n\nText: weather\nLabel: 0\n\n"
		assert.Equal(t, []string{
			shots + "Now classify this text:\nText: {text}\nLabel:",
			"Classify text as related to disinformation (1) or not (0).\n\n" + shots + "Text: {text}\nLabel:",
		}, got)
	})
}
