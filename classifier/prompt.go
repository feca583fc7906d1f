package classifier

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/teilomillet/relcheck/dataset"
)

// Placeholder marks where the input text goes in a template.
const Placeholder = "{text}"

// DefaultTemplate asks for an answer in the format Parse understands.
const DefaultTemplate = `Analyze the following text and decide whether it is relevant to disinformation analysis.

Text: {text}

Respond in exactly this format:
Classification: 1 (relevant) or 0 (not relevant)
Confidence: a number between 0.0 and 1.0`

// Prediction is a parsed model answer.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PromptTemplate renders classification prompts and parses the answers.
type PromptTemplate struct {
	Template string
}

func NewPromptTemplate(template string) PromptTemplate {
	if template == "" {
		template = DefaultTemplate
	}
	return PromptTemplate{Template: template}
}

// Format substitutes text for every placeholder. A template without a
// placeholder gets the text appended on its own paragraph.
func (p PromptTemplate) Format(text string) string {
	if !strings.Contains(p.Template, Placeholder) {
		return p.Template + "\n\n" + text
	}
	return strings.ReplaceAll(p.Template, Placeholder, text)
}

var (
	classificationPattern = regexp.MustCompile(`(?i)classification\s*:\s*\**\s*([01])\b`)
	confidencePattern     = regexp.MustCompile(`(?i)confidence\s*:\s*\**\s*([0-9]*\.?[0-9]+)`)
)

// bareAnswers maps a leading one-word answer to a label.
var bareAnswers = map[string]string{
	"1": dataset.LabelRelevant, "yes": dataset.LabelRelevant, "true": dataset.LabelRelevant, "relevant": dataset.LabelRelevant,
	"0": dataset.LabelNotRelevant, "no": dataset.LabelNotRelevant, "false": dataset.LabelNotRelevant,
}

// bareConfidence is assigned to answers that carry no confidence.
const bareConfidence = 0.5

// Parse reads "Classification: <0|1>" and "Confidence: <x>" from a
// response. A response starting with a bare answer (1/0, yes/no,
// true/false) is accepted with confidence 0.5. Anything else is
// ("0", 0.0).
func (p PromptTemplate) Parse(response string) Prediction {
	if m := classificationPattern.FindStringSubmatch(response); m != nil {
		confidence := bareConfidence
		if c := confidencePattern.FindStringSubmatch(response); c != nil {
			if v, err := strconv.ParseFloat(c[1], 64); err == nil {
				confidence = math.Min(1, math.Max(0, v))
			}
		}
		return Prediction{Label: m[1], Confidence: confidence}
	}

	first, _, _ := strings.Cut(strings.TrimSpace(response), "\n")
	fields := strings.Fields(first)
	if len(fields) > 0 {
		word := strings.ToLower(strings.Trim(fields[0], ".,:;!*\"'()"))
		if label, ok := bareAnswers[word]; ok {
			return Prediction{Label: label, Confidence: bareConfidence}
		}
	}
	return Prediction{Label: dataset.LabelNotRelevant, Confidence: 0}
}
