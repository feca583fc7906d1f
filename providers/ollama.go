package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

const (
	ollamaKeyModel   = "model"
	ollamaKeyPrompt  = "prompt"
	ollamaKeyStream  = "stream"
	ollamaKeyOptions = "options"
)

// ErrMissingResponse is returned when an Ollama reply has no "response" field.
var ErrMissingResponse = errors.New("missing 'response' field in Ollama response")

// OllamaProvider talks to a local Ollama server through /api/generate
// with streaming disabled.
type OllamaProvider struct {
	logger   logging.Logger
	options  map[string]any
	endpoint string
	model    string
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaProvider{
		endpoint: strings.TrimRight(baseURL, "/"),
		model:    model,
		options:  make(map[string]any),
		logger:   logging.NewNopLogger(),
	}
}

func (p *OllamaProvider) Name() string {
	return config.ProviderOllama
}

func (p *OllamaProvider) Endpoint() string {
	return p.endpoint + "/api/generate"
}

func (p *OllamaProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
	}
}

// SetDefaultOptions copies sampling settings from cfg. A non-empty base
// URL replaces the endpoint.
func (p *OllamaProvider) SetDefaultOptions(cfg config.LLMConfig) {
	p.SetOption("temperature", cfg.Temperature)
	if cfg.Seed != nil {
		p.SetOption("seed", *cfg.Seed)
	}
	if cfg.BaseURL != "" {
		p.endpoint = strings.TrimRight(cfg.BaseURL, "/")
	}
}

// SetOption sets a model option sent under "options" (temperature,
// seed, num_predict, top_p, ...).
func (p *OllamaProvider) SetOption(key string, value any) {
	p.options[key] = value
	p.logger.Debug("Setting option for Ollama", "key", key, "value", value)
}

func (p *OllamaProvider) SetLogger(logger logging.Logger) {
	p.logger = logger
}

// PrepareRequest builds a non-streaming generate request. Per-call
// options override the provider defaults.
func (p *OllamaProvider) PrepareRequest(prompt string, options map[string]any) ([]byte, error) {
	modelOptions := make(map[string]any, len(p.options)+len(options))
	for k, v := range p.options {
		modelOptions[k] = v
	}
	for k, v := range options {
		modelOptions[k] = v
	}

	requestBody := map[string]any{
		ollamaKeyModel:  p.model,
		ollamaKeyPrompt: prompt,
		ollamaKeyStream: false,
	}
	if len(modelOptions) > 0 {
		requestBody[ollamaKeyOptions] = modelOptions
	}

	data, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

// ParseResponse returns the "response" field of a generate reply.
func (p *OllamaProvider) ParseResponse(body []byte) (string, error) {
	var response struct {
		Model    string  `json:"model"`
		Response *string `json:"response"`
		Done     bool    `json:"done"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("invalid JSON response from Ollama: %w", err)
	}
	if response.Response == nil {
		return "", ErrMissingResponse
	}
	return *response.Response, nil
}
