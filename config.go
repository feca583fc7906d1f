// Package relcheck wires configuration, the language model, the classifier
// and the stores into ready-to-use components. This file re-exports the
// configuration types and setters from the config package so callers can
// configure relcheck from a single import.
package relcheck

import (
	"github.com/teilomillet/relcheck/config"
	"github.com/teilomillet/relcheck/internal/logging"
)

type (
	// Config holds every relcheck setting: the language model, the store
	// backend, the classifier cache and the log level.
	//
	// Example usage:
	//   cfg, err := LoadConfig("", SetProvider("ollama"), SetModel("llama3"))
	Config = config.Config

	// ConfigOption modifies a Config. Options are applied after the YAML
	// file and the environment.
	ConfigOption = config.ConfigOption

	// LogLevel defines the verbosity of logging output.
	LogLevel = logging.LogLevel

	// Logger is the leveled logger accepted by every relcheck component.
	Logger = logging.Logger
)

const (
	LogLevelDebug = logging.LogLevelDebug
	LogLevelInfo  = logging.LogLevelInfo
	LogLevelWarn  = logging.LogLevelWarn
	LogLevelError = logging.LogLevelError
	LogLevelOff   = logging.LogLevelOff
)

var (
	// NewConfig returns a Config holding the defaults: the mock provider,
	// the file store under ~/.disinfo_relation_checker and WARN logging.
	NewConfig = config.NewConfig

	// LoadConfig reads the YAML file at path (skipped when empty), then the
	// environment, then applies the options and validates the result.
	//
	// Example usage:
	//   cfg, err := LoadConfig("relcheck.yaml")
	//   if err != nil {
	//       log.Fatal(err)
	//   }
	LoadConfig = config.Load

	// ApplyOptions applies options to an existing Config in order.
	ApplyOptions = config.ApplyOptions

	// NewLogger returns a logger writing to stderr at the given level.
	NewLogger = func(level LogLevel) Logger { return logging.NewLogger(level) }

	// ParseLogLevel converts a level name such as "info" to a LogLevel.
	ParseLogLevel = logging.ParseLevel
)

var (
	// SetProvider selects the language model provider ("mock" or "ollama").
	SetProvider = config.SetProvider

	// SetBaseURL sets the provider endpoint.
	SetBaseURL = config.SetBaseURL

	// SetModel sets the provider model name.
	SetModel = config.SetModel

	SetTimeout     = config.SetTimeout
	SetMaxRetries  = config.SetMaxRetries
	SetRetryDelay  = config.SetRetryDelay
	SetTemperature = config.SetTemperature
	SetSeed        = config.SetSeed

	// SetRateLimit caps requests per second to the provider; 0 disables it.
	SetRateLimit = config.SetRateLimit

	// SetStoreBackend selects "file" or "sqlite" persistence.
	SetStoreBackend = config.SetStoreBackend

	// SetDataDir sets the directory holding models, tests and monitoring data.
	SetDataDir = config.SetDataDir

	// SetCacheSize sets the classifier prediction cache size; 0 disables caching.
	SetCacheSize = config.SetCacheSize

	// SetTokenEncoding enables prompt token accounting with a tiktoken
	// encoding such as "cl100k_base".
	SetTokenEncoding = config.SetTokenEncoding

	SetLogLevel = config.SetLogLevel
)
