package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/teilomillet/relcheck/internal/validation"
	"github.com/teilomillet/relcheck/metrics"
)

// ModelMetadata describes one registered model version.
type ModelMetadata struct {
	Name           string         `json:"name" yaml:"name" validate:"required,excludesall=/\\"`
	Version        string         `json:"version" yaml:"version" validate:"required"`
	Description    string         `json:"description" yaml:"description"`
	PromptTemplate string         `json:"prompt_template" yaml:"prompt_template" validate:"required"`
	LLMConfig      map[string]any `json:"llm_config" yaml:"llm_config"`
	Performance    metrics.Report `json:"performance" yaml:"performance"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	Tags           []string       `json:"tags" yaml:"tags"`
}

// Ref returns "name:version".
func (m ModelMetadata) Ref() string {
	return m.Name + ":" + m.Version
}

// Validate checks required fields, the version format and score ranges.
func (m ModelMetadata) Validate() error {
	if err := validation.Struct(m); err != nil {
		return fmt.Errorf("invalid model metadata: %s", validation.Describe(err))
	}
	if _, err := ParseVersion(m.Version); err != nil {
		return err
	}
	return nil
}

// WithTags returns a copy of m carrying tags.
func (m ModelMetadata) WithTags(tags []string) ModelMetadata {
	m.Tags = slices.Clone(tags)
	return m
}

// ModelConfig is the file format accepted by LoadModelConfig.
type ModelConfig struct {
	PromptTemplate string          `json:"prompt_template" yaml:"prompt_template" jsonschema:"description=Prompt template containing the {text} placeholder"`
	LLMConfig      map[string]any  `json:"llm_config,omitempty" yaml:"llm_config,omitempty" jsonschema:"description=Provider settings; defaults to the mock provider"`
	Performance    *metrics.Report `json:"performance" yaml:"performance" jsonschema:"description=Measured scores of this template"`
}

var (
	errMissingTemplate    = errors.New("configuration must contain 'prompt_template'")
	errMissingPerformance = errors.New("configuration must contain 'performance' metrics")
)

// LoadModelConfig reads a YAML or JSON model configuration file.
func LoadModelConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("reading model config: %w", err)
	}
	var cfg ModelConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ModelConfig{}, fmt.Errorf("parsing model config %s: %w", path, err)
	}
	return cfg, nil
}

// NewMetadataFromConfig builds metadata for name:version from a model
// configuration. The LLM config defaults to the mock provider.
func NewMetadataFromConfig(name, version, description string, cfg ModelConfig, tags []string) (ModelMetadata, error) {
	if cfg.PromptTemplate == "" {
		return ModelMetadata{}, errMissingTemplate
	}
	if cfg.Performance == nil {
		return ModelMetadata{}, errMissingPerformance
	}
	llmConfig := cfg.LLMConfig
	if llmConfig == nil {
		llmConfig = map[string]any{"provider_type": "mock"}
	}
	if tags == nil {
		tags = []string{}
	}
	m := ModelMetadata{
		Name:           name,
		Version:        version,
		Description:    description,
		PromptTemplate: cfg.PromptTemplate,
		LLMConfig:      llmConfig,
		Performance:    *cfg.Performance,
		CreatedAt:      time.Now().UTC(),
		Tags:           tags,
	}
	if err := validation.Struct(m.Performance); err != nil {
		return ModelMetadata{}, fmt.Errorf("invalid performance: %s", validation.Describe(err))
	}
	if err := m.Validate(); err != nil {
		return ModelMetadata{}, err
	}
	return m, nil
}

// ConfigSchema returns the JSON schema of ModelConfig.
func ConfigSchema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := r.Reflect(&ModelConfig{})
	schema.Title = "relcheck model configuration"
	return json.MarshalIndent(schema, "", "  ")
}
