package optimizer

import (
	"fmt"
	"strings"

	"github.com/teilomillet/relcheck/dataset"
)

// Placeholder marks where the input text goes in a template.
const Placeholder = "{text}"

// TemplateGenerator supplies the templates a strategy searches over.
type TemplateGenerator interface {
	BaseTemplates() []string
	Variations(template string) []string
	FewShotTemplates(examples []dataset.Example) []string
}

// Generator produces disinformation-relevance templates. It is stateless.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

var baseTemplates = []string{
	"Classify the following text as related (1) or not related (0) to disinformation: {text}",
	"Is this text relevant to disinformation analysis? Answer 1 for yes, 0 for no: {text}",
	"Analyze this text for disinformation content. Return 1 if relevant, 0 if not: {text}",
	"Does this text contain or discuss disinformation? Reply with 1 (yes) or 0 (no): {text}",
	"Evaluate if this text is about disinformation or misinformation. Output 1 or 0: {text}",
}

// BaseTemplates returns a fresh copy of the fixed seed templates.
func (g *Generator) BaseTemplates() []string {
	return append([]string(nil), baseTemplates...)
}

// Variations returns template followed by mechanically derived rewrites.
// Duplicates are dropped, as is any rewrite that loses the placeholder.
func (g *Generator) Variations(template string) []string {
	candidates := []string{template}
	if strings.Contains(strings.ToLower(template), "classify") {
		candidates = append(candidates,
			strings.ReplaceAll(template, "Classify", "Determine"),
			strings.ReplaceAll(template, "Classify", "Categorize"),
			strings.ReplaceAll(template, "classify", "identify"),
		)
	}
	if strings.Contains(template, "1 or 0") {
		r := strings.NewReplacer("1", "true", "0", "false")
		candidates = append(candidates, r.Replace(strings.ReplaceAll(template, "1 or 0", "true or false")))
	}
	candidates = append(candidates,
		"Please "+strings.ToLower(template),
		template+"\n\nAnswer:",
		"Task: "+template,
	)

	keep := strings.Contains(template, Placeholder)
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] || strings.Contains(c, Placeholder) != keep {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// FewShotTemplates embeds the first positive and first negative example.
// With fewer than two examples or a missing class it returns BaseTemplates.
func (g *Generator) FewShotTemplates(examples []dataset.Example) []string {
	if len(examples) < 2 {
		return g.BaseTemplates()
	}
	var pos, neg *dataset.Example
	for i := range examples {
		switch examples[i].Label {
		case dataset.LabelRelevant:
			if pos == nil {
				pos = &examples[i]
			}
		case dataset.LabelNotRelevant:
			if neg == nil {
				neg = &examples[i]
			}
		}
	}
	if pos == nil || neg == nil {
		return g.BaseTemplates()
	}

	var sb strings.Builder
	sb.WriteString("Examples:\n")
	for _, e := range []*dataset.Example{pos, neg} {
		fmt.Fprintf(&sb, "Text: %s\nLabel: %s\n\n", e.Text, e.Label)
	}
	shots := sb.String()

	return []string{
		shots + "Now classify this text:\nText: {text}\nLabel:",
		"Classify text as related to disinformation (1) or not (0).\n\n" + shots + "Text: {text}\nLabel:",
	}
}
