// Package providers adapts language model HTTP APIs to a common request
// and response shape.
package providers

import (
	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
)

// Provider builds requests for and parses responses from one LLM API.
type Provider interface {
	Name() string
	Endpoint() string
	Headers() map[string]string
	SetDefaultOptions(cfg config.LLMConfig)
	SetOption(key string, value any)
	SetLogger(logger logging.Logger)

	PrepareRequest(prompt string, options map[string]any) ([]byte, error)
	ParseResponse(body []byte) (string, error)
}

// ProviderConstructor creates a provider for a base URL and model.
type ProviderConstructor func(baseURL, model string) Provider
