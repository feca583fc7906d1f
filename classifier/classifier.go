// Package classifier labels texts as relevant or not relevant to
// disinformation analysis by prompting a language model.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/llm"
	"github.com/teilomillet/relcheck/metrics"
)

// Usage counts the work a classifier has done.
type Usage struct {
	Calls        int64 `json:"calls"`
	CacheHits    int64 `json:"cache_hits"`
	PromptTokens int64 `json:"prompt_tokens"`
}

type cacheKey struct {
	template string
	text     string
}

// TextClassifier classifies texts with the currently bound template. It
// is safe for concurrent use, but rebinding the template while a batch
// runs changes the template for the remaining items.
type TextClassifier struct {
	model  llm.LLM
	logger logging.Logger
	tokens TokenCounter
	cache  *lru.Cache[cacheKey, Prediction]

	mu       sync.RWMutex
	template PromptTemplate

	calls        atomic.Int64
	cacheHits    atomic.Int64
	promptTokens atomic.Int64
}

type Option func(*TextClassifier) error

// WithCacheSize keeps up to size predictions per (template, text). Zero
// disables caching.
func WithCacheSize(size int) Option {
	return func(c *TextClassifier) error {
		if size <= 0 {
			c.cache = nil
			return nil
		}
		cache, err := lru.New[cacheKey, Prediction](size)
		if err != nil {
			return fmt.Errorf("creating prediction cache: %w", err)
		}
		c.cache = cache
		return nil
	}
}

// WithTokenCounter records prompt token counts in Usage.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *TextClassifier) error {
		c.tokens = tc
		return nil
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *TextClassifier) error {
		c.logger = logger
		return nil
	}
}

// WithTemplate binds an initial template instead of DefaultTemplate.
func WithTemplate(template string) Option {
	return func(c *TextClassifier) error {
		c.template = NewPromptTemplate(template)
		return nil
	}
}

func New(model llm.LLM, opts ...Option) (*TextClassifier, error) {
	c := &TextClassifier{
		model:    model,
		logger:   logging.NewNopLogger(),
		template: NewPromptTemplate(""),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetPromptTemplate binds template for subsequent calls.
func (c *TextClassifier) SetPromptTemplate(template string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.template = NewPromptTemplate(template)
}

// Template returns the bound template.
func (c *TextClassifier) Template() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.template.Template
}

// Classify prompts the model for text. Model errors are returned unchanged.
func (c *TextClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	c.mu.RLock()
	tmpl := c.template
	c.mu.RUnlock()

	key := cacheKey{template: tmpl.Template, text: text}
	if c.cache != nil {
		if p, ok := c.cache.Get(key); ok {
			c.cacheHits.Add(1)
			return p, nil
		}
	}

	prompt := tmpl.Format(text)
	if c.tokens != nil {
		c.promptTokens.Add(int64(c.tokens.Count(prompt)))
	}
	c.calls.Add(1)
	response, err := c.model.Generate(llm.WithSubject(ctx, text), prompt)
	if err != nil {
		return Prediction{}, err
	}
	p := tmpl.Parse(response)
	c.logger.Debug("Classified text", "label", p.Label, "confidence", p.Confidence)

	if c.cache != nil {
		c.cache.Add(key, p)
	}
	return p, nil
}

// ClassifyBatch classifies texts in order and stops at the first error.
func (c *TextClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	out := make([]Prediction, 0, len(texts))
	for _, text := range texts {
		p, err := c.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Validate classifies every example and scores the predictions against
// the labels.
func (c *TextClassifier) Validate(ctx context.Context, examples []dataset.Example) (metrics.Report, error) {
	predictions, err := c.ClassifyBatch(ctx, dataset.Texts(examples))
	if err != nil {
		return metrics.Report{}, err
	}
	labels := make([]string, len(predictions))
	for i, p := range predictions {
		labels[i] = p.Label
	}
	return metrics.Compute(labels, dataset.Labels(examples))
}

// ClassifyRecords returns copies of records with "classification" and
// "confidence" columns filled from the "text" column.
func (c *TextClassifier) ClassifyRecords(ctx context.Context, records []dataset.Record) ([]dataset.Record, error) {
	out := make([]dataset.Record, 0, len(records))
	for i, rec := range records {
		text, ok := rec["text"]
		if !ok {
			return nil, fmt.Errorf("row %d: %w: text", i+1, dataset.ErrMissingColumn)
		}
		p, err := c.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		row := make(dataset.Record, len(rec)+2)
		for k, v := range rec {
			row[k] = v
		}
		row["classification"] = p.Label
		row["confidence"] = strconv.FormatFloat(p.Confidence, 'f', -1, 64)
		out = append(out, row)
	}
	return out, nil
}

// Usage returns a snapshot of the counters.
func (c *TextClassifier) Usage() Usage {
	return Usage{
		Calls:        c.calls.Load(),
		CacheHits:    c.cacheHits.Load(),
		PromptTokens: c.promptTokens.Load(),
	}
}
