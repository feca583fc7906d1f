// Package config loads relcheck settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/internal/validation"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProviderMock   = "mock"
	ProviderOllama = "ollama"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// LLMConfig selects and tunes the language model behind the classifier.
type LLMConfig struct {
	ProviderType string        `yaml:"provider_type" env:"LLM_PROVIDER" validate:"oneof=mock ollama" json:"provider_type"`
	BaseURL      string        `yaml:"base_url" env:"LLM_BASE_URL" validate:"omitempty,url" json:"base_url"`
	Model        string        `yaml:"model" env:"LLM_MODEL" validate:"required" json:"model"`
	Timeout      time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" validate:"gt=0" json:"timeout"`
	MaxRetries   int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" validate:"gte=0" json:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay" env:"LLM_RETRY_DELAY" validate:"gte=0" json:"retry_delay"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit   float64 `yaml:"rate_limit" env:"LLM_RATE_LIMIT" validate:"gte=0" json:"rate_limit"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" validate:"gte=0,lte=2" json:"temperature"`
	Seed        *int    `yaml:"seed,omitempty" env:"LLM_SEED" json:"seed,omitempty"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"RELCHECK_STORE" validate:"oneof=file sqlite"`
	Dir     string `yaml:"dir" env:"RELCHECK_DATA_DIR" validate:"required"`
}

type Config struct {
	LLM           LLMConfig        `yaml:"llm"`
	Store         StoreConfig      `yaml:"store"`
	CacheSize     int              `yaml:"cache_size" env:"RELCHECK_CACHE_SIZE" validate:"gte=0"`
	TokenEncoding string           `yaml:"token_encoding" env:"RELCHECK_TOKEN_ENCODING"`
	LogLevel      logging.LogLevel `yaml:"log_level" env:"RELCHECK_LOG_LEVEL"`
}

type ConfigOption func(*Config)

// DefaultDataDir returns ~/.disinfo_relation_checker, or a relative
// directory of the same name when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".disinfo_relation_checker"
	}
	return filepath.Join(home, ".disinfo_relation_checker")
}

func NewConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			ProviderType: ProviderMock,
			BaseURL:      "http://localhost:11434",
			Model:        "gemma3n:e4b",
			Timeout:      30 * time.Second,
			MaxRetries:   3,
			RetryDelay:   2 * time.Second,
		},
		Store: StoreConfig{
			Backend: StoreFile,
			Dir:     DefaultDataDir(),
		},
		CacheSize: 1024,
		LogLevel:  logging.LogLevelWarn,
	}
}

// Load builds a configuration. Defaults are overlaid by the YAML file at
// path (skipped when path is empty), then by set environment variables,
// then by opts. The result is validated.
func Load(path string, opts ...ConfigOption) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	ApplyOptions(cfg, opts...)
	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, validation.Describe(err))
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func SetProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.LLM.ProviderType = provider
	}
}

func SetBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.LLM.BaseURL = url
	}
}

func SetModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLM.Model = model
	}
}

func SetTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.LLM.Timeout = timeout
	}
}

func SetMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) {
		c.LLM.MaxRetries = maxRetries
	}
}

func SetRetryDelay(retryDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.LLM.RetryDelay = retryDelay
	}
}

func SetRateLimit(perSecond float64) ConfigOption {
	return func(c *Config) {
		c.LLM.RateLimit = perSecond
	}
}

func SetTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.LLM.Temperature = temperature
	}
}

func SetSeed(seed int) ConfigOption {
	return func(c *Config) {
		c.LLM.Seed = &seed
	}
}

func SetStoreBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Store.Backend = backend
	}
}

func SetDataDir(dir string) ConfigOption {
	return func(c *Config) {
		c.Store.Dir = dir
	}
}

func SetCacheSize(size int) ConfigOption {
	return func(c *Config) {
		c.CacheSize = size
	}
}

func SetTokenEncoding(encoding string) ConfigOption {
	return func(c *Config) {
		c.TokenEncoding = encoding
	}
}

func SetLogLevel(level logging.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}
