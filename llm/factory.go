package llm

import (
	"fmt"

	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/providers"
)

// New returns the model selected by cfg: the offline MockLLM for the mock
// provider, otherwise a Client for the registered provider.
func New(cfg config.LLMConfig, logger logging.Logger, opts ...ClientOption) (LLM, error) {
	if cfg.ProviderType == config.ProviderMock {
		return NewMockLLM(), nil
	}
	provider, err := providers.NewRegistry().Get(cfg.ProviderType, cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, NewLLMError(ErrorTypeProvider, fmt.Sprintf("cannot create provider %q", cfg.ProviderType), err)
	}
	if logger != nil {
		opts = append([]ClientOption{WithLogger(logger)}, opts...)
	}
	return NewClient(cfg, provider, opts...), nil
}
