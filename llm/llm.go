// Package llm sends prompts to a language model, with retries and rate
// limiting, and provides a deterministic offline stand-in.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/providers"
)

// LLM generates a completion for a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls a provider over HTTP. It is safe for concurrent use.
type Client struct {
	provider    providers.Provider
	client      *http.Client
	logger      logging.Logger
	rateLimiter *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(l *Client) {
		l.client = c
	}
}

func WithLogger(logger logging.Logger) ClientOption {
	return func(l *Client) {
		l.logger = logger
	}
}

// NewClient creates a client for provider using the timeout, retry and
// rate settings of cfg.
func NewClient(cfg config.LLMConfig, provider providers.Provider, opts ...ClientOption) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	l := &Client{
		provider:    provider,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logging.NewNopLogger(),
		rateLimiter: rate.NewLimiter(limit, 1),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	provider.SetLogger(l.logger)
	provider.SetDefaultOptions(cfg)
	return l
}

// Provider returns the provider the client talks to.
func (l *Client) Provider() providers.Provider {
	return l.provider
}

// Generate sends prompt, retrying failed attempts up to the configured
// limit with a fixed delay. Context cancellation stops the retries.
func (l *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", NewLLMError(ErrorTypeInvalidInput, "empty prompt", nil)
	}

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err := l.rateLimiter.Wait(ctx); err != nil {
			return "", NewLLMError(ErrorTypeRateLimit, "rate limiter wait failed", err)
		}
		l.logger.Debug("Generating text", "provider", l.provider.Name(), "attempt", attempt+1)

		result, err := l.attemptGenerate(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var llmErr *LLMError
		if errors.As(err, &llmErr) {
			l.logger.Warn("Generation attempt failed", append(llmErr.LoggableFields(), "attempt", attempt+1)...)
			if !llmErr.Retryable() {
				return "", err
			}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < l.maxRetries {
			l.logger.Debug("Retrying", "delay", l.retryDelay)
			if err := l.wait(ctx); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("failed to generate after %d attempts: %w", l.maxRetries+1, lastErr)
}

func (l *Client) wait(ctx context.Context) error {
	timer := time.NewTimer(l.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Client) attemptGenerate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := l.provider.PrepareRequest(prompt, nil)
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to prepare request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.provider.Endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to create request", err)
	}
	for k, v := range l.provider.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to send request to "+l.provider.Endpoint(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewLLMError(ErrorTypeResponse, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		l.logger.Error("API error", "provider", l.provider.Name(), "status", resp.StatusCode, "body", string(body))
		apiErr := NewLLMError(ErrorTypeAPI, fmt.Sprintf("API error (%d): %s", resp.StatusCode, bytes.TrimSpace(body)), nil)
		apiErr.StatusCode = resp.StatusCode
		return "", apiErr
	}

	result, err := l.provider.ParseResponse(body)
	if err != nil {
		return "", NewLLMError(ErrorTypeResponse, "failed to parse response", err)
	}
	return result, nil
}
