package optimizer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/teilomillet/relcheck/dataset"
	"github.com/teilomillet/relcheck/internal/logging"
)

// BatchJob is one named training set to optimize.
type BatchJob struct {
	Name           string
	Data           []dataset.Example
	TargetAccuracy float64
	MaxIterations  int
}

type BatchResult struct {
	Name  string
	Best  PromptCandidate
	Error error
}

// OptimizerFactory builds a fresh optimizer for one job. Strategies are
// not safe for overlapping runs, so jobs never share one.
type OptimizerFactory func() (*PromptOptimizer, error)

// BatchOptimizer optimizes several training sets concurrently.
type BatchOptimizer struct {
	factory     OptimizerFactory
	rateLimiter *rate.Limiter
	logger      logging.Logger
}

// NewBatchOptimizer builds one optimizer per job from factory.
func NewBatchOptimizer(factory OptimizerFactory, logger logging.Logger) *BatchOptimizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BatchOptimizer{
		factory:     factory,
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
		logger:      logger,
	}
}

// SetRateLimit throttles how fast jobs are started.
func (b *BatchOptimizer) SetRateLimit(r rate.Limit, burst int) {
	b.rateLimiter = rate.NewLimiter(r, burst)
}

// OptimizeAll runs every job and returns results in job order.
func (b *BatchOptimizer) OptimizeAll(ctx context.Context, jobs []BatchJob) []BatchResult {
	results := make([]BatchResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job BatchJob) {
			defer wg.Done()
			results[i] = BatchResult{Name: job.Name}

			if err := b.rateLimiter.Wait(ctx); err != nil {
				results[i].Error = fmt.Errorf("rate limiter error: %w", err)
				return
			}
			po, err := b.factory()
			if err != nil {
				results[i].Error = fmt.Errorf("building optimizer for %s: %w", job.Name, err)
				return
			}
			best, err := po.Optimize(ctx, job.Data, job.TargetAccuracy, job.MaxIterations)
			results[i].Best, results[i].Error = best, err
			b.logger.Info("Batch job finished", "job", job.Name, "f1", best.F1, "error", err)
		}(i, job)
	}
	wg.Wait()
	return results
}
