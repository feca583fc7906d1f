package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// app holds the global flags shared by every command.
type app struct {
	configPath   string
	logLevel     string
	storeBackend string
	dataDir      string
	provider     string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "relcheck",
		Short: "Disinformation relevance checker",
		Long: `relcheck classifies texts as relevant or not relevant to disinformation
research using a language model, and tunes the classifier prompt.

Examples:
  relcheck classify input.csv output.csv
  relcheck validate labeled.csv --model relevance:1.0.0
  relcheck optimize labeled.csv --strategy genetic --register relevance:1.1.0
  relcheck abtest setup minor --model-a relevance:1.0.0 --model-b relevance:1.1.0`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to a YAML settings file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	flags.StringVar(&a.storeBackend, "store", "", "Store backend (file, sqlite)")
	flags.StringVar(&a.dataDir, "data-dir", "", "Directory holding models, A/B tests and monitoring data")
	flags.StringVar(&a.provider, "provider", "", "LLM provider (mock, ollama)")

	root.AddCommand(
		newVersionCmd(),
		newClassifyCmd(a),
		newValidateCmd(a),
		newOptimizeCmd(a),
		newModelsCmd(a),
		newABTestCmd(a),
		newMonitorCmd(a),
		newDataCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relcheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relcheck version %s\n", version)
		},
	}
}

// loadConfig reads the settings file and environment, then applies the
// global flags that were set.
func (a *app) loadConfig() (*relcheck.Config, error) {
	var opts []relcheck.ConfigOption
	if a.logLevel != "" {
		level, err := relcheck.ParseLogLevel(a.logLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, relcheck.SetLogLevel(level))
	}
	if a.storeBackend != "" {
		opts = append(opts, relcheck.SetStoreBackend(a.storeBackend))
	}
	if a.dataDir != "" {
		opts = append(opts, relcheck.SetDataDir(a.dataDir))
	}
	if a.provider != "" {
		opts = append(opts, relcheck.SetProvider(a.provider))
	}
	return relcheck.LoadConfig(a.configPath, opts...)
}

type runFunc func(cmd *cobra.Command, args []string, sys *relcheck.System) error

// run opens the system for the duration of one command.
func (a *app) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		sys, err := relcheck.Open(cfg, nil)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sys.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args, sys)
	}
}
