package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
)

func TestOllamaEndpoint(t *testing.T) {
	p := NewOllamaProvider("", "gemma3n:e4b")
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, "http://localhost:11434/api/generate", p.Endpoint())
	assert.Equal(t, "application/json", p.Headers()["Content-Type"])

	p = NewOllamaProvider("http://gpu-box:11434/", "llama3")
	assert.Equal(t, "http://gpu-box:11434/api/generate", p.Endpoint())
}

func TestOllamaPrepareRequest(t *testing.T) {
	seed := 7
	p := NewOllamaProvider("", "gemma3n:e4b")
	logger := logging.NewMockLogger()
	p.SetLogger(logger)
	p.SetDefaultOptions(config.LLMConfig{Temperature: 0.2, Seed: &seed, BaseURL: "http://other:1234"})
	assert.Equal(t, "http://other:1234/api/generate", p.Endpoint())
	assert.Equal(t, 2, logger.Count(logging.LogLevelDebug))

	body, err := p.PrepareRequest("Classify: hello", map[string]any{"temperature": 0.5})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "gemma3n:e4b", req["model"])
	assert.Equal(t, "Classify: hello", req["prompt"])
	assert.Equal(t, false, req["stream"])
	options := req["options"].(map[string]any)
	assert.Equal(t, 0.5, options["temperature"])
	assert.Equal(t, 7.0, options["seed"])
}

func TestOllamaParseResponse(t *testing.T) {
	p := NewOllamaProvider("", "m")

	text, err := p.ParseResponse([]byte(`{"model":"m","response":"Classification: 1\nConfidence: 0.9","done":true}`))
	require.NoError(t, err)
	assert.Equal(t, "Classification: 1\nConfidence: 0.9", text)

	text, err = p.ParseResponse([]byte(`{"response":""}`))
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = p.ParseResponse([]byte(`{"done":true}`))
	assert.ErrorIs(t, err, ErrMissingResponse)

	_, err = p.ParseResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"ollama"}, r.Names())

	p, err := r.Get("ollama", "http://localhost:11434", "m")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	_, err = r.Get("openai", "", "m")
	assert.EqualError(t, err, "unknown provider: openai")

	r.Register("custom", func(baseURL, model string) Provider { return NewOllamaProvider(baseURL, model) })
	assert.Equal(t, []string{"custom", "ollama"}, r.Names())

	assert.Empty(t, NewRegistry("nope").Names())
}
