package relcheck

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/teilomillet/relcheck/abtest"
	"github.com/teilomillet/relcheck/classifier"
	"github.com/teilomillet/relcheck/internal/logging"
	"github.com/teilomillet/relcheck/llm"
	"github.com/teilomillet/relcheck/monitor"
	"github.com/teilomillet/relcheck/optimizer"
	"github.com/teilomillet/relcheck/registry"
	"github.com/teilomillet/relcheck/store"
)

const (
	StrategyGenetic   = "genetic"
	StrategyIterative = "iterative"
)

// ErrUnknownStrategy is returned for a strategy name other than
// StrategyGenetic or StrategyIterative.
var ErrUnknownStrategy = errors.New("unknown optimization strategy")

// System bundles the components built from one Config. The model is
// shared; every classifier handed out by NewClassifier binds its own
// template.
type System struct {
	Config    *Config
	Logger    Logger
	Model     llm.LLM
	Store     store.Store
	Registry  *registry.Registry
	Collector *monitor.Collector
	Monitor   *monitor.Monitor
}

// Open builds the language model and opens the store selected by cfg.
// A nil logger is replaced by one at cfg.LogLevel.
func Open(cfg *Config, logger Logger) (*System, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger(cfg.LogLevel)
	}
	model, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	collector := monitor.NewCollector(st)
	logger.Debug("System ready", "provider", cfg.LLM.ProviderType, "store", cfg.Store.Backend, "dir", cfg.Store.Dir)
	return &System{
		Config:    cfg,
		Logger:    logger,
		Model:     model,
		Store:     st,
		Registry:  registry.New(st, registry.WithLogger(logger)),
		Collector: collector,
		Monitor:   monitor.NewMonitor(collector, st, logger),
	}, nil
}

// Close releases the store.
func (s *System) Close() error {
	return s.Store.Close()
}

// NewClassifier returns a classifier over the shared model, configured with
// the cache size and token encoding of the system configuration.
func (s *System) NewClassifier(opts ...classifier.Option) (*classifier.TextClassifier, error) {
	return NewClassifier(s.Config, s.Model, s.Logger, opts...)
}

// NewClassifier builds a classifier over model from cfg.
func NewClassifier(cfg *Config, model llm.LLM, logger Logger, opts ...classifier.Option) (*classifier.TextClassifier, error) {
	base := []classifier.Option{
		classifier.WithCacheSize(cfg.CacheSize),
		classifier.WithLogger(logger),
	}
	if cfg.TokenEncoding != "" {
		counter, err := classifier.NewTiktokenCounter(cfg.TokenEncoding)
		if err != nil {
			return nil, err
		}
		base = append(base, classifier.WithTokenCounter(counter))
	}
	return classifier.New(model, append(base, opts...)...)
}

// NewStrategy returns the named strategy with default hyperparameters.
func NewStrategy(name string, opts ...optimizer.StrategyOption) (optimizer.Strategy, error) {
	switch name {
	case StrategyGenetic:
		return optimizer.NewGeneticStrategy(optimizer.DefaultGeneticConfig(), opts...)
	case StrategyIterative:
		return optimizer.NewIterativeStrategy(optimizer.DefaultIterativeConfig(), opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// NewOptimizer returns an optimizer running the named strategy over a fresh
// classifier. Extra options are applied last.
func (s *System) NewOptimizer(strategy string, opts ...optimizer.OptimizerOption) (*optimizer.PromptOptimizer, error) {
	strat, err := NewStrategy(strategy, optimizer.WithStrategyLogger(s.Logger))
	if err != nil {
		return nil, err
	}
	clf, err := s.NewClassifier()
	if err != nil {
		return nil, err
	}
	base := []optimizer.OptimizerOption{
		optimizer.WithStrategy(strat),
		optimizer.WithClassifier(clf),
		optimizer.WithLogger(s.Logger),
	}
	return optimizer.NewPromptOptimizer(append(base, opts...)...), nil
}

// NewBatchOptimizer returns a batch optimizer whose jobs each get their own
// strategy and classifier. A positive cfg.LLM.RateLimit also paces job starts.
func (s *System) NewBatchOptimizer(strategy string, opts ...optimizer.OptimizerOption) *optimizer.BatchOptimizer {
	batch := optimizer.NewBatchOptimizer(func() (*optimizer.PromptOptimizer, error) {
		return s.NewOptimizer(strategy, opts...)
	}, s.Logger)
	if r := s.Config.LLM.RateLimit; r > 0 {
		batch.SetRateLimit(rate.Limit(r), 1)
	}
	return batch
}

// NewABRunner returns an A/B runner over a fresh classifier, resolving
// model references through the registry and persisting to the store.
func (s *System) NewABRunner(opts ...abtest.RunnerOption) (*abtest.Runner, error) {
	clf, err := s.NewClassifier()
	if err != nil {
		return nil, err
	}
	base := []abtest.RunnerOption{
		abtest.WithModels(s.Registry),
		abtest.WithStorage(s.Store),
		abtest.WithLogger(s.Logger),
	}
	return abtest.NewRunner(clf, append(base, opts...)...), nil
}

// ModelClassifier returns a classifier bound to the template of a
// registered model.
func (s *System) ModelClassifier(ctx context.Context, name, version string) (*classifier.TextClassifier, error) {
	tmpl, err := s.Registry.PromptTemplate(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return s.NewClassifier(classifier.WithTemplate(tmpl))
}
