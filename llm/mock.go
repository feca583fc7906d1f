package llm

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
)

var relevantKeywords = []string{
	"politics", "political", "government", "election", "voting", "democracy",
	"policy", "politician", "parliament", "congress", "senate", "minister",
	"campaign", "candidate", "ballot", "referendum", "party", "coalition",
	"legislation", "law", "regulation", "public", "citizen", "civic",
	"administration", "authority", "official", "state", "federal", "local",
	"disinformation", "misinformation", "fake news", "propaganda", "bias",
	"conspiracy", "rumor", "false", "misleading", "fact-check", "verify",
	"social media", "facebook", "twitter", "instagram", "tiktok", "youtube",
	"news", "media", "journalism", "reporter", "broadcast", "press",
}

const (
	highMatchThreshold   = 3
	highDensityThreshold = 0.1
)

var keywordPattern = func() *regexp.Regexp {
	// Longest first so "fake news" wins over "news".
	kw := slices.Clone(relevantKeywords)
	slices.SortStableFunc(kw, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(kw))
	for i, k := range kw {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}()

type subjectKey struct{}

// WithSubject attaches the text being classified to ctx. MockLLM scores
// the subject instead of the whole prompt when one is present.
func WithSubject(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, subjectKey{}, text)
}

// SubjectFrom returns the text attached by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

// MockLLM answers classification prompts with a keyword heuristic. It
// makes no network calls and is deterministic.
type MockLLM struct {
	calls atomic.Int64
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Calls returns how many prompts have been answered.
func (m *MockLLM) Calls() int64 {
	return m.calls.Load()
}

// Generate replies "Classification: <0|1>\nConfidence: <x>".
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.calls.Add(1)
	text, ok := SubjectFrom(ctx)
	if !ok {
		text = prompt
	}
	label, confidence := ScoreKeywords(text)
	return fmt.Sprintf("Classification: %s\nConfidence: %.2f", label, confidence), nil
}

// ScoreKeywords classifies text by the count and density of
// disinformation-related keywords.
func ScoreKeywords(text string) (label string, confidence float64) {
	if strings.TrimSpace(text) == "" {
		return "0", 0.1
	}
	matches := len(keywordPattern.FindAllString(text, -1))
	if matches == 0 {
		return "0", 0.2
	}
	density := float64(matches) / float64(len(strings.Fields(text)))
	if matches >= highMatchThreshold || density >= highDensityThreshold {
		return "1", math.Min(0.9, 0.6+density*2)
	}
	return "1", math.Min(0.8, 0.4+density*3)
}
